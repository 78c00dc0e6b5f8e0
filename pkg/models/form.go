package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// CollectGeneral holds the general section of an ODK Collect settings payload.
type CollectGeneral struct {
	ServerURL      string `bson:"server_url" json:"server_url"`
	FormUpdateMode string `bson:"form_update_mode" json:"form_update_mode"`
	Autosend       string `bson:"autosend" json:"autosend"`
}

// CollectProject holds the project section of an ODK Collect settings payload.
type CollectProject struct {
	Name string `bson:"name" json:"name"`
}

// CollectSettings is the payload encoded into the QR code that configures the
// Collect mobile client to submit against a specific form, either through an
// app-user key (live collection) or a draft test token.
type CollectSettings struct {
	General CollectGeneral `bson:"general" json:"general"`
	Project CollectProject `bson:"project" json:"project"`
}

// Form is a survey form within a project. Draft and Live are independent
// flags: a form can have one published version collecting submissions while a
// newer draft is in progress. DraftVersion is non-nil iff Draft is true, and
// LiveVersion is non-nil iff Live is true.
type Form struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Name         string             `bson:"name" json:"name"`
	Project      string             `bson:"project" json:"project"`
	CentralID    string             `bson:"centralID" json:"centralID"`
	Users        []string           `bson:"users" json:"users"`
	Draft        bool               `bson:"draft" json:"draft"`
	DraftVersion *string            `bson:"draftVersion" json:"draftVersion"`
	Live         bool               `bson:"live" json:"live"`
	LiveVersion  *string            `bson:"liveVersion" json:"liveVersion"`
	Complete     bool               `bson:"complete" json:"complete"`

	CollectionDetails      *CollectSettings `bson:"collectionDetails,omitempty" json:"collectionDetails,omitempty"`
	DraftCollectionDetails *CollectSettings `bson:"draftCollectionDetails,omitempty" json:"draftCollectionDetails,omitempty"`
}

// CurrentVersion returns the version number auto-increment is based on:
// the draft version when a draft exists, else the live version, else "0".
func (f *Form) CurrentVersion() string {
	if f.DraftVersion != nil {
		return *f.DraftVersion
	}
	if f.LiveVersion != nil {
		return *f.LiveVersion
	}
	return "0"
}
