// Package credentials loads the Google service-account key used by the Drive
// and GCS backends.
package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/JakeFAU/drhp-archiver/internal/archiver"
)

const field = "storage.credentials_file"

// ServiceAccount is a validated key file.
type ServiceAccount struct {
	Path        string
	ProjectID   string
	ClientEmail string
	creds       *google.Credentials
}

type keyFile struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

// Load reads and validates the key file at path for the given OAuth scopes.
// Every failure is a *archiver.ConfigError so it surfaces before any work starts.
func Load(ctx context.Context, path string, scopes ...string) (*ServiceAccount, error) {
	if path == "" {
		return nil, &archiver.ConfigError{Field: field, Err: errors.New("path is required")}
	}
	// #nosec G304 -- path is operator supplied configuration.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &archiver.ConfigError{Field: field, Err: fmt.Errorf("read %s: %w", path, err)}
	}

	var key keyFile
	if err := json.Unmarshal(data, &key); err != nil {
		return nil, &archiver.ConfigError{Field: field, Err: fmt.Errorf("parse %s: %w", path, err)}
	}
	if key.Type != "service_account" {
		return nil, &archiver.ConfigError{Field: field, Err: fmt.Errorf("unsupported key type %q", key.Type)}
	}
	if key.ClientEmail == "" || key.PrivateKey == "" {
		return nil, &archiver.ConfigError{Field: field, Err: errors.New("client_email and private_key are required")}
	}

	creds, err := google.CredentialsFromJSON(ctx, data, scopes...)
	if err != nil {
		return nil, &archiver.ConfigError{Field: field, Err: err}
	}
	return &ServiceAccount{
		Path:        path,
		ProjectID:   key.ProjectID,
		ClientEmail: key.ClientEmail,
		creds:       creds,
	}, nil
}

// ClientOption authenticates Google API clients with the key.
func (s *ServiceAccount) ClientOption() option.ClientOption {
	return option.WithCredentials(s.creds)
}
