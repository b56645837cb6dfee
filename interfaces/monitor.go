package interfaces

import (
	"context"

	"github.com/ezenkico/useintest/models"
)

// Monitor blocks until the instance is ready to use.
//
// It returns nil when the service is ready, a *models.TransientServiceStartError
// or *models.PersistentServiceStartError when a failure was recognised, and
// any other error when waiting itself broke.
type Monitor interface {
	WaitUntilReady(ctx context.Context, instance *models.ServiceInstance) error
}
