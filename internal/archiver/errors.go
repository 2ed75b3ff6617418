package archiver

import (
	"fmt"
	"net/http"
)

// ConfigError reports invalid configuration or an unusable credential file.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NetworkError reports a transport failure or a non-success HTTP status.
type NetworkError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// UploadError reports an authorization or transport failure while storing a document remotely.
type UploadError struct {
	Name string
	Err  error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Name, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// StateCorruptionError reports persisted state that cannot be decoded.
type StateCorruptionError struct {
	Source string
	Err    error
}

func (e *StateCorruptionError) Error() string {
	return fmt.Sprintf("corrupt state in %s: %v", e.Source, e.Err)
}

func (e *StateCorruptionError) Unwrap() error {
	return e.Err
}
