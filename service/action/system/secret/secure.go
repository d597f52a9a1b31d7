package secret

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/viant/afs"
	"github.com/viant/scy"
	"github.com/viant/scy/cred"
)

// SecureInput describes a secret to encrypt; the payload comes from Content,
// Data or SourceURL, checked in that order.
type SecureInput struct {
	SourceURL string                 `json:"sourceURL,omitempty"`
	Content   string                 `json:"content,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	DestURL   string                 `json:"destURL" required:"true"`
	Target    string                 `json:"target,omitempty" description:"credential type: raw, basic, key, generic"`
	Key       string                 `json:"key,omitempty" description:"encryption key, e.g. blowfish://default"`
}

// SecureOutput reports the outcome of encrypting a secret.
type SecureOutput struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Secure encrypts a payload and stores it at DestURL, so registry fallback
// tokens never sit on disk in the clear.
func (s *Service) Secure(ctx context.Context, input *SecureInput, output *SecureOutput) error {
	data, err := s.payload(ctx, input)
	if err != nil {
		return err
	}

	var targetType reflect.Type
	if input.Target != "" && input.Target != "raw" {
		if targetType, err = cred.TargetType(input.Target); err != nil {
			return fmt.Errorf("invalid target type '%s': %w", input.Target, err)
		}
	}

	var aSecret *scy.Secret
	if targetType != nil {
		instance := reflect.New(targetType).Interface()
		if err := json.Unmarshal(data, instance); err != nil {
			return fmt.Errorf("failed to unmarshal data to target type %s: %w", input.Target, err)
		}
		aSecret = scy.NewSecret(instance, scy.NewResource(targetType, input.DestURL, input.Key))
	} else {
		aSecret = scy.NewSecret(string(data), scy.NewResource(nil, input.DestURL, input.Key))
	}

	if err := s.scyService.Store(ctx, aSecret); err != nil {
		return fmt.Errorf("failed to store encrypted secret: %w", err)
	}
	output.Success = true
	output.Message = fmt.Sprintf("secret encrypted and stored at %s", input.DestURL)
	return nil
}

func (s *Service) payload(ctx context.Context, input *SecureInput) ([]byte, error) {
	switch {
	case input.Content != "":
		return []byte(input.Content), nil
	case len(input.Data) > 0:
		data, err := json.Marshal(input.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal data: %w", err)
		}
		return data, nil
	case input.SourceURL != "":
		data, err := afs.New().DownloadWithURL(ctx, input.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("failed to download from %s: %w", input.SourceURL, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("no content provided: specify sourceURL, content, or data")
}
