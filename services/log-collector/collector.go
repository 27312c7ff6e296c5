package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrBadTopic is returned for topics that do not name a service.
var ErrBadTopic = errors.New("log topic has no service segment")

// Collector appends every received log line to <dir>/<service>.log.
type Collector struct {
	dir string
	// Paho delivers in order on one goroutine; the lock keeps Append safe
	// for other callers too.
	mu sync.Mutex
}

func NewCollector(dir string) (*Collector, error) {
	// 0755: owner writes, everyone else may read and list.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	return &Collector{dir: dir}, nil
}

// ServiceFromTopic extracts the service name from logs/<service>[/...].
func ServiceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[1] == "" {
		return "", fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	service := parts[1]
	// The name becomes a file name; keep it inside dir.
	if service == "." || service == ".." || strings.ContainsAny(service, `\`) {
		return "", fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	return service, nil
}

// Append writes one line for topic. The file is opened and closed per line,
// which plays well with external log rotation.
func (c *Collector) Append(topic string, line []byte) error {
	service, err := ServiceFromTopic(topic)
	if err != nil {
		return err
	}
	filename := filepath.Join(c.dir, service+".log")

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	// Payloads usually lack the trailing newline.
	line = []byte(strings.TrimRight(string(line), "\n"))
	if _, err := f.Write(append(line, '\n')); err != nil {
		return err
	}
	return nil
}
