package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Project groups forms and carries the foreign key into the Central server.
// Users is membership only; the roles a member holds live on the User record.
type Project struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Name      string             `bson:"name" json:"name"`
	CentralID string             `bson:"centralID" json:"centralID"`
	Users     []string           `bson:"users" json:"users"`
	Forms     []string           `bson:"forms" json:"forms"`
}
