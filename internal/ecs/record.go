package ecs

// Version is the Elastic Common Schema release the record layout follows.
// Changing any field below means revisiting it.
const Version = "8.10.0"

// TimestampLayout renders @timestamp with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is one ECS log document.
// See https://www.elastic.co/guide/en/ecs/8.10/ecs-field-reference.html
type Record struct {
	Timestamp string         `json:"@timestamp"`
	Log       Log            `json:"log"`
	Message   string         `json:"message"`
	ECS       ECSField       `json:"ecs"`
	Tags      []string       `json:"tags"`
	Labels    map[string]any `json:"labels,omitempty"`
	Service   Service        `json:"service"`
	Host      Host           `json:"host"`
	User      any            `json:"user,omitempty"`
	HTTP      HTTP           `json:"http"`
	Trace     Trace          `json:"trace"`
	URL       URL            `json:"url"`
	UserAgent UserAgent      `json:"user_agent"`
	Client    Client         `json:"client"`
	Error     map[string]any `json:"error,omitempty"`
	Device    map[string]any `json:"device,omitempty"`
}

type Log struct {
	Level string `json:"level"`
}

type ECSField struct {
	Version string `json:"version"`
}

type Service struct {
	Name string `json:"name,omitempty"`
}

type Host struct {
	Name string `json:"name,omitempty"`
}

type HTTP struct {
	Version  string       `json:"version,omitempty"`
	Request  HTTPRequest  `json:"request"`
	Response HTTPResponse `json:"response"`
}

type HTTPRequest struct {
	ID      string `json:"id,omitempty"`
	Method  string `json:"method,omitempty"`
	Headers string `json:"headers,omitempty"`
	Body    *Body  `json:"body,omitempty"`
}

// Body carries the request payload as serialized JSON text.
type Body struct {
	Content string `json:"content"`
}

type HTTPResponse struct {
	StatusCode int               `json:"status_code,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

type Trace struct {
	ID string `json:"id,omitempty"`
}

type URL struct {
	Full     string `json:"full,omitempty"`
	Path     string `json:"path,omitempty"`
	Query    string `json:"query,omitempty"`
	Fragment string `json:"fragment,omitempty"`
}

type UserAgent struct {
	Original string `json:"original,omitempty"`
}

type Client struct {
	IP      string `json:"ip,omitempty"`
	Address string `json:"address,omitempty"`
	Port    int    `json:"port,omitempty"`
}
