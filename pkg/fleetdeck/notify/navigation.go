package notify

import (
	"context"
)

// Navigation asks the host to move the user to a record page.
type Navigation struct {
	RecordID   string `json:"recordId"`
	RecordType string `json:"objectApiName"`
	Action     string `json:"actionName"`
}

// Navigator is the host's navigation surface.
type Navigator interface {
	Navigate(ctx context.Context, nav Navigation) error
}

// NavigatorFunc adapts a function to the Navigator interface.
type NavigatorFunc func(ctx context.Context, nav Navigation) error

// Navigate implements Navigator.
func (f NavigatorFunc) Navigate(ctx context.Context, nav Navigation) error {
	return f(ctx, nav)
}
