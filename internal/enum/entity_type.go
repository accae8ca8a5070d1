package enum

type EntityType string

const (
	VIOLATION       EntityType = "VIOLATION"
	INBOUND_MESSAGE EntityType = "INBOUND_MESSAGE"
	NOTIFICATION    EntityType = "NOTIFICATION"
)

func (entityType EntityType) String() string {
	return string(entityType)
}
