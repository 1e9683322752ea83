package model

// Kind names an entity table.
type Kind string

const (
	KindAccount           Kind = "account"
	KindStatus            Kind = "status"
	KindPoll              Kind = "poll"
	KindRelationship      Kind = "relationship"
	KindNotification      Kind = "notification"
	KindFamiliarFollowers Kind = "familiar_followers"
	KindCollection        Kind = "collection"
)

// Key identifies one row of one table. Change notifications and subscription
// interests are expressed in keys.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string { return string(k.Kind) + ":" + k.ID }

func AccountKey(id string) Key           { return Key{Kind: KindAccount, ID: id} }
func StatusKey(id string) Key            { return Key{Kind: KindStatus, ID: id} }
func PollKey(id string) Key              { return Key{Kind: KindPoll, ID: id} }
func RelationshipKey(id string) Key      { return Key{Kind: KindRelationship, ID: id} }
func NotificationKey(id string) Key      { return Key{Kind: KindNotification, ID: id} }
func FamiliarFollowersKey(id string) Key { return Key{Kind: KindFamiliarFollowers, ID: id} }
func CollectionRowKey(name string) Key   { return Key{Kind: KindCollection, ID: name} }

// Record is implemented by every stored record.
type Record interface {
	RecordKey() Key
}
