package ecs

import (
	"fmt"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/jacoelho/ecslog/internal/clock"
	"github.com/jacoelho/ecslog/internal/redact"
	"github.com/jacoelho/ecslog/internal/safejson"
)

// DefaultTags is used when neither the event nor the options carry tags.
var DefaultTags = []string{"request"}

// HTTPContext is the request/response pair an event was logged for.
type HTTPContext struct {
	Request        *http.Request
	Body           any
	Status         int
	ResponseHeader http.Header
}

// Device describes the hardware an event originated from. Extra members are
// merged into the device object next to the standard ones.
type Device struct {
	ID           string
	Manufacturer string
	Model        *DeviceModel
	Extra        map[string]any
}

type DeviceModel struct {
	Identifier string `json:"identifier,omitempty"`
	Name       string `json:"name,omitempty"`
}

// Info is everything a caller knows about one log event.
type Info struct {
	Time    time.Time
	Level   string
	Message string
	HTTP    *HTTPContext
	User    any
	TxID    string
	Err     error
	Tags    []string
	Device  *Device
	Labels  map[string]any
}

// Entry is a transformed event: the info it came from, with any generated
// ids filled in, and the serialized ECS document.
type Entry struct {
	Info    Info
	Message string
}

// Errors may expose extra ECS error members through these.
type (
	fielder interface {
		Fields() map[string]any
	}
	coder interface {
		Code() any
	}
	stackTracer interface {
		StackTrace() string
	}
)

type Options struct {
	ServiceName     string
	HostName        string
	Version         string
	Tags            []string
	Encoder         *safejson.Encoder
	Now             clock.Func
	GenerateTraceID bool

	// Redactor hides secrets in headers, bodies and URLs. Nil logs them as is.
	Redactor *redact.Redactor
}

// Transformer maps events into ECS records. It is safe for concurrent use.
type Transformer struct {
	service         string
	host            string
	version         string
	tags            []string
	encoder         *safejson.Encoder
	now             clock.Func
	generateTraceID bool
	redactor        *redact.Redactor
}

func New(opts Options) *Transformer {
	tags := opts.Tags
	if len(tags) == 0 {
		tags = DefaultTags
	}

	version := opts.Version
	if version == "" {
		version = Version
	}

	encoder := opts.Encoder
	if encoder == nil {
		encoder = safejson.NewEncoder()
	}

	return &Transformer{
		service:         opts.ServiceName,
		host:            opts.HostName,
		version:         version,
		tags:            slices.Clone(tags),
		encoder:         encoder,
		now:             clock.Or(opts.Now),
		generateTraceID: opts.GenerateTraceID,
		redactor:        opts.Redactor,
	}
}

// Transform builds the record for info and serializes it once.
func (t *Transformer) Transform(info Info) (Entry, error) {
	if info.TxID == "" && t.generateTraceID {
		info.TxID = uuid.NewString()
	}

	record, err := t.Record(info)
	if err != nil {
		return Entry{}, err
	}

	message, err := t.encoder.MarshalString(record)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to serialize ECS record: %w", err)
	}

	return Entry{Info: info, Message: message}, nil
}

// Record maps info onto the ECS layout without serializing it.
func (t *Transformer) Record(info Info) (Record, error) {
	at := info.Time
	if at.IsZero() {
		at = t.now()
	}

	tags := info.Tags
	if tags == nil {
		tags = t.tags
	}

	record := Record{
		Timestamp: at.UTC().Format(TimestampLayout),
		Log:       Log{Level: info.Level},
		Message:   info.Message,
		ECS:       ECSField{Version: t.version},
		Tags:      tags,
		Labels:    info.Labels,
		Service:   Service{Name: t.service},
		Host:      Host{Name: t.host},
		User:      info.User,
		HTTP: HTTP{
			Request: HTTPRequest{ID: info.TxID},
		},
		Trace: Trace{ID: info.TxID},
	}

	if hc := info.HTTP; hc != nil {
		if err := t.applyHTTP(&record, hc); err != nil {
			return Record{}, err
		}
	}

	if info.Err != nil {
		record.Error = errorFields(info.Err, info.HTTP)
	}

	if info.Device != nil {
		record.Device = deviceFields(info.Device)
	}

	return record, nil
}

func (t *Transformer) applyHTTP(record *Record, hc *HTTPContext) error {
	record.HTTP.Response.StatusCode = hc.Status
	if len(hc.ResponseHeader) > 0 {
		record.HTTP.Response.Headers = t.headers(hc.ResponseHeader)
	}

	r := hc.Request
	if r == nil {
		return nil
	}

	record.HTTP.Version = httpVersion(r)
	record.HTTP.Request.Method = r.Method

	headers := t.headers(r.Header)
	if headers == nil {
		headers = map[string]string{}
	}
	encoded, err := t.encoder.MarshalString(headers)
	if err != nil {
		return fmt.Errorf("failed to serialize request headers: %w", err)
	}
	record.HTTP.Request.Headers = encoded

	if hc.Body != nil {
		content, err := t.encoder.MarshalString(hc.Body)
		if err != nil {
			return fmt.Errorf("failed to serialize request body: %w", err)
		}
		record.HTTP.Request.Body = &Body{Content: t.redactor.String(content)}
	}

	record.URL = parseURL(r)
	record.URL.Full = t.redactor.String(record.URL.Full)
	record.URL.Query = t.redactor.String(record.URL.Query)
	record.UserAgent = UserAgent{Original: r.Header.Get("User-Agent")}
	record.Client = parseClient(r)

	return nil
}

// headers flattens h with sensitive values redacted.
func (t *Transformer) headers(h http.Header) map[string]string {
	flat := flattenHeader(h)
	if !t.redactor.Enabled() {
		return flat
	}
	for name, value := range flat {
		flat[name] = t.redactor.Header(name, value)
	}
	return flat
}

func errorFields(err error, hc *HTTPContext) map[string]any {
	fields := map[string]any{}

	if f, ok := err.(fielder); ok {
		maps.Copy(fields, f.Fields())
	}

	fields["type"] = fmt.Sprintf("%T", err)
	fields["message"] = err.Error()

	switch c, ok := err.(coder); {
	case ok:
		fields["code"] = c.Code()
	case hc != nil && hc.Status != 0:
		fields["code"] = hc.Status
	}

	if st, ok := err.(stackTracer); ok {
		fields["stack_trace"] = st.StackTrace()
	}

	return fields
}

func deviceFields(d *Device) map[string]any {
	fields := make(map[string]any, len(d.Extra)+3)
	maps.Copy(fields, d.Extra)

	if d.ID != "" {
		fields["id"] = d.ID
	}
	if d.Manufacturer != "" {
		fields["manufacturer"] = d.Manufacturer
	}
	if d.Model != nil {
		fields["model"] = d.Model
	}

	return fields
}
