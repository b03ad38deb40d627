//go:build !linux

package buttons

import (
	"context"
	"fmt"
)

func Watch(ctx context.Context, cfg Config, skip SkipFunc) error {
	return fmt.Errorf("buttons: gpio unsupported on this platform")
}
