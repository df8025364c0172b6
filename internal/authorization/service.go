package authorization

import (
	"context"
	"errors"
)

var (
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)

const (
	ActorSystem = "system"
	ActorAdmin  = "admin"
)

const (
	ObjectUsage        = "usage"
	ObjectSubscription = "subscription"
	ObjectFloorPlan    = "floor_plan"
)

const (
	ActionUsageReset    = "usage.reset"
	ActionUsageResetDue = "usage.reset_due"

	ActionSubscriptionAssign = "subscription.assign"
	ActionSubscriptionExpire = "subscription.expire"

	ActionFloorPlanRecover = "floor_plan.recover"
)

// Service checks whether an actor may perform an action on an object.
// Actors are "system", "admin" or "user:<id>".
type Service interface {
	Authorize(ctx context.Context, actor string, object string, action string) error
}
