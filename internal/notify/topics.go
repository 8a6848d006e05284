package notify

import (
	"fmt"
	"strings"

	"github.com/eeya7ya/magictech-management-sub002/internal/domain"
)

// TopicAll is the broadcast topic every client may subscribe to.
// Topic names are derived deterministically so independently deployed
// clients agree on them without coordination.
const TopicAll = "notify.all"

// KnownModules is the set of department modules deployed today. Used by
// SubscribeToAll; per-module topics for modules added later still resolve
// deterministically via ModuleTopic.
var KnownModules = []domain.ModuleType{
	domain.ModuleSales,
	domain.ModuleProjects,
	domain.ModulePricing,
	domain.ModuleStorage,
	domain.ModuleMaintenance,
}

// ModuleTopic returns the topic carrying every notification addressed to one
// department module.
func ModuleTopic(m domain.ModuleType) string {
	return "notify.module." + strings.ToLower(string(m))
}

// ActionTopic returns the narrower topic for one (module, action, entityType)
// triple, letting a client subscribe to a subset of event kinds.
func ActionTopic(module domain.ModuleType, action, entityType string) string {
	return fmt.Sprintf("notify.action.%s.%s.%s",
		strings.ToLower(string(module)),
		strings.ToLower(action),
		strings.ToLower(entityType),
	)
}

// DeviceTopic returns the topic addressing one specific connected client.
func DeviceTopic(deviceID string) string {
	return "notify.device." + deviceID
}

// TopicsForModule returns the topics a department client subscribes to at
// startup: the broadcast topic plus its own module topic.
func TopicsForModule(m domain.ModuleType) []string {
	return []string{TopicAll, ModuleTopic(m)}
}
