package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/jacoelho/ecslog/internal/config"
	"github.com/jacoelho/ecslog/internal/safejson"
)

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// encode re-emits a YAML or JSON document through the cycle-safe encoder.
func encode(cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	data, err := readInput(cfg.Input, stdin)
	if err != nil {
		return err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to decode input: %w", err)
	}

	return cfg.Encoder(true).Encode(stdout, doc)
}

// locate prints the value a path placeholder points at.
func locate(cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	data, err := readInput(cfg.Input, stdin)
	if err != nil {
		return err
	}

	target, err := safejson.Locate(data, cfg.PlaceholderText)
	if err != nil {
		return err
	}

	return cfg.Encoder(true).Encode(stdout, target)
}
