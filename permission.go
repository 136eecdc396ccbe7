package acp

import (
	"context"
	"fmt"
)

// PermissionRequest is a simplified, option-agnostic view of a
// RequestPermissionParams, for Client implementations that only need an
// approve/deny decision rather than the full ACP option list. Carried
// over from engine/acp/options.go's PermissionRequest unchanged in shape.
type PermissionRequest struct {
	SessionID   string
	ToolName    string
	ToolCallID  string
	Description string
}

// BoolPermissionHandler answers a permission request with a simple
// approve/deny decision. WrapBoolPermissionHandler maps true/false back
// onto whichever ACP option the agent actually offered.
type BoolPermissionHandler func(ctx context.Context, req PermissionRequest) (approved bool, err error)

// WrapBoolPermissionHandler adapts h into the signature Client.RequestPermission
// expects, collapsing the ACP option-based outcome to the handler's binary
// decision: true prefers allow_once then allow_always; false prefers
// reject_once then reject_always. If neither preferred kind is offered the
// request is reported as cancelled, matching engine/acp/process.go's
// makePermissionHandler behavior for an unrecognized option set.
func WrapBoolPermissionHandler(h BoolPermissionHandler) func(context.Context, RequestPermissionParams) (RequestPermissionOutcome, error) {
	return func(ctx context.Context, p RequestPermissionParams) (RequestPermissionOutcome, error) {
		req := PermissionRequest{
			SessionID:   p.SessionID,
			ToolName:    p.ToolCall.Title,
			ToolCallID:  p.ToolCall.ToolCallID,
			Description: p.ToolCall.Kind,
		}

		approved, err := safeCallBoolPermissionHandler(ctx, h, req)
		if err != nil {
			return CancelledPermission(), nil
		}
		kinds := []string{"reject_once", "reject_always"}
		if approved {
			kinds = []string{"allow_once", "allow_always"}
		}
		for _, k := range kinds {
			if FirstOptionByKind(p.Options, k) != "" {
				return SelectPermissionOption(p.Options, k), nil
			}
		}
		return CancelledPermission(), nil
	}
}

// FirstOptionByKind returns the id of the first option matching any of kinds, or "".
func FirstOptionByKind(options []PermissionOpt, kinds ...string) string {
	for _, opt := range options {
		for _, k := range kinds {
			if opt.Kind == k {
				return opt.OptionID
			}
		}
	}
	return ""
}

// CancelledPermission is the outcome reported when no usable option exists.
func CancelledPermission() RequestPermissionOutcome {
	return RequestPermissionOutcome{Outcome: "cancelled"}
}

// SelectPermissionOption picks the first option matching any of kinds and
// reports it selected, or CancelledPermission if none match.
func SelectPermissionOption(options []PermissionOpt, kinds ...string) RequestPermissionOutcome {
	optID := FirstOptionByKind(options, kinds...)
	if optID == "" {
		return CancelledPermission()
	}
	return RequestPermissionOutcome{Outcome: "selected", OptionID: optID}
}

func safeCallBoolPermissionHandler(ctx context.Context, h BoolPermissionHandler, req PermissionRequest) (approved bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("acp: permission handler panic: %v", r)
		}
	}()
	return h(ctx, req)
}
