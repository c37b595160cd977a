package ecs

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// splitURL breaks a request target into path, query and fragment at the
// first '?' and '#'. A '?' inside the fragment belongs to the fragment.
func splitURL(target string) URL {
	var u URL

	query := strings.IndexByte(target, '?')
	anchor := strings.IndexByte(target, '#')

	switch {
	case query > -1 && anchor > query:
		u.Path = target[:query]
		u.Query = target[query+1 : anchor]
		u.Fragment = target[anchor+1:]
	case anchor > -1:
		u.Path = target[:anchor]
		u.Fragment = target[anchor+1:]
	case query > -1:
		u.Path = target[:query]
		u.Query = target[query+1:]
	default:
		u.Path = target
	}

	return u
}

// requestTarget is the path, query and fragment as the client sent them.
// Absolute-form targets are reduced to their origin form.
func requestTarget(r *http.Request) string {
	target := r.RequestURI
	if strings.HasPrefix(target, "/") || r.URL == nil {
		return target
	}

	target = r.URL.RequestURI()
	if r.URL.Fragment != "" {
		target += "#" + r.URL.EscapedFragment()
	}
	return target
}

func fullURL(r *http.Request) string {
	if r.URL != nil && r.URL.IsAbs() {
		return r.URL.String()
	}

	host := r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}
	if host == "" {
		return ""
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + host + requestTarget(r)
}

// parseURL fills the url.* fields for r.
func parseURL(r *http.Request) URL {
	u := splitURL(requestTarget(r))
	u.Full = fullURL(r)
	return u
}

// parseClient picks, in order, the left-most X-Forwarded-For entry, X-Real-Ip,
// and the peer address. X-Forwarded-For can be forged, but by convention its
// first entry is the originating client.
func parseClient(r *http.Request) Client {
	host, port := splitHostPort(r.RemoteAddr)

	ip := ""
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		ip = strings.TrimSpace(first)
	}
	if ip == "" {
		ip = strings.TrimSpace(r.Header.Get("X-Real-Ip"))
	}
	if ip == "" {
		ip = host
	}

	return Client{
		IP:      ip,
		Address: ip,
		Port:    port,
	}
}

func splitHostPort(addr string) (string, int) {
	if addr == "" {
		return "", 0
	}

	host, portText, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}

	port, err := strconv.Atoi(portText)
	if err != nil {
		return host, 0
	}
	return host, port
}

// flattenHeader lower-cases names and joins repeated values with ", ".
func flattenHeader(h http.Header) map[string]string {
	if h == nil {
		return nil
	}

	out := make(map[string]string, len(h))
	for name, values := range h {
		out[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	return out
}

func httpVersion(r *http.Request) string {
	if r.ProtoMajor == 0 && r.ProtoMinor == 0 {
		return ""
	}
	return fmt.Sprintf("%d.%d", r.ProtoMajor, r.ProtoMinor)
}
