package notify

import "github.com/eeya7ya/magictech-management-sub002/internal/domain"

// TopicsFor maps a message to the broker topics it must be published on.
// It is a pure function of the message:
//
//   - target module set      -> that module's topic, never the broadcast topic
//   - target device set      -> that device's topic
//   - no target at all       -> the broadcast topic
//
// When both action and entity type are present the narrower action topic is
// selected as well, so a message resolves to one or two topics.
func TopicsFor(msg *domain.NotificationMessage) []string {
	var topics []string

	switch {
	case msg.TargetModule != "":
		topics = append(topics, ModuleTopic(msg.TargetModule))
	case msg.TargetDeviceID != "":
		topics = append(topics, DeviceTopic(msg.TargetDeviceID))
	default:
		topics = append(topics, TopicAll)
	}

	if msg.Action != "" && msg.EntityType != "" {
		topics = append(topics, ActionTopic(msg.Module, msg.Action, msg.EntityType))
	}

	return topics
}
