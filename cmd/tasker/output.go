package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cloudsbay/tasker/internal/auth"
	"github.com/cloudsbay/tasker/internal/prioritize"
	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/tasks"
)

// outputJSON outputs data as pretty-printed JSON to w.
func outputJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// outputJSONError outputs an error as JSON to stderr and exits with code 1.
func outputJSONError(err error, code string) {
	errObj := map[string]string{"error": err.Error()}
	if code != "" {
		errObj["code"] = code
	}
	encoder := json.NewEncoder(os.Stderr)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(errObj) // Best effort: if JSON encoding fails, error is already printed to stderr
	os.Exit(1)
}

// errorCode maps well-known errors to stable machine-readable codes.
func errorCode(err error) string {
	var genErr *prioritize.GenerationError
	switch {
	case errors.Is(err, auth.ErrNoSession), errors.Is(err, tasks.ErrNoSession):
		return "not_signed_in"
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, auth.ErrEmailInUse):
		return "email_in_use"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	case errors.As(err, &genErr), errors.Is(err, prioritize.ErrEmptyResponse):
		return "generation_failed"
	}
	return ""
}
