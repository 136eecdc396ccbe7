package acp

import "encoding/json"

// unmarshalResult decodes a Runtime response's raw JSON result into out.
// A nil/empty raw with a non-empty-struct out is left zero-valued rather
// than erroring — several result types (WriteTextFileResult, empty
// terminal acks) are intentionally empty objects or absent entirely.
func unmarshalResult(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ConnectionError{Kind: ConnDecodingFailed, Detail: err.Error()}
	}
	return nil
}
