package utils

import (
	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IDGenerator hands out record identifiers. Issue ids come from a snowflake
// node so they are unique across restarts and never reused.
type IDGenerator struct {
	node *snowflake.Node
}

func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, err
	}
	return &IDGenerator{node: node}, nil
}

// MustIDGenerator is NewIDGenerator for node ids known to be valid.
func MustIDGenerator(nodeID int64) *IDGenerator {
	g, err := NewIDGenerator(nodeID)
	if err != nil {
		panic(err)
	}
	return g
}

func (g *IDGenerator) NewIssueID() string {
	return g.node.Generate().String()
}

func (g *IDGenerator) NewCommentID() string {
	return ksuid.New().String()
}

func (g *IDGenerator) NewUserID() string {
	return primitive.NewObjectID().Hex()
}
