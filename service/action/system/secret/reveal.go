package secret

import (
	"context"
	"fmt"

	"github.com/viant/scy"
	"github.com/viant/scy/cred"
	"github.com/viant/toolbox"
)

// RevealInput locates an encrypted secret.
type RevealInput struct {
	SourceURL string `json:"sourceURL" required:"true"`
	Target    string `json:"target,omitempty" description:"credential type: raw, basic, key, generic"`
	Key       string `json:"key,omitempty"`
}

// RevealOutput carries the decrypted secret; typed secrets land in Data,
// raw ones in PlainText.
type RevealOutput struct {
	PlainText string                 `json:"plainText,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Success   bool                   `json:"success"`
}

// Reveal loads and decrypts a stored secret.
func (s *Service) Reveal(ctx context.Context, input *RevealInput, output *RevealOutput) error {
	var target interface{}
	if input.Target != "" && input.Target != "raw" {
		targetType, err := cred.TargetType(input.Target)
		if err != nil {
			return fmt.Errorf("invalid target type '%s': %w", input.Target, err)
		}
		if targetType != nil {
			target = targetType
		}
	}

	aSecret, err := s.scyService.Load(ctx, scy.NewResource(target, input.SourceURL, input.Key))
	if err != nil {
		return fmt.Errorf("failed to load secret from %s: %w", input.SourceURL, err)
	}

	if !aSecret.IsPlain && aSecret.Target != nil {
		aMap := map[string]interface{}{}
		if err := toolbox.DefaultConverter.AssignConverted(&aMap, aSecret.Target); err != nil {
			return fmt.Errorf("failed to convert secret data: %w", err)
		}
		output.Data = toolbox.DeleteEmptyKeys(aMap)
	} else {
		output.PlainText = aSecret.String()
	}
	output.Success = true
	return nil
}
