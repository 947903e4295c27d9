package domain

// DefaultItineraryImageURL is stored when an itinerary is created without an image.
const DefaultItineraryImageURL = "https://images.unsplash.com/photo-1488646953014-85cb44e25828?w=800"

// CollateralType is the media format of a collateral asset.
type CollateralType string

const (
	CollateralPDF   CollateralType = "PDF"
	CollateralDOCX  CollateralType = "DOCX"
	CollateralPPTX  CollateralType = "PPTX"
	CollateralImage CollateralType = "Image"
	CollateralVideo CollateralType = "Video"
)

// CollateralFeedback is the compliance verdict written by the assist layer.
type CollateralFeedback struct {
	IssuesFound bool   `json:"issuesFound" bson:"issuesFound"`
	Feedback    string `json:"feedback" bson:"feedback"`
}

// Collateral is a marketing or reference asset attached to an itinerary.
// Collaterals start unapproved; rejecting one deletes it.
type Collateral struct {
	ID         string              `json:"id" bson:"id"`
	Name       string              `json:"name" bson:"name"`
	Type       CollateralType      `json:"type" bson:"type"`
	URL        string              `json:"url" bson:"url"`
	Approved   bool                `json:"approved" bson:"approved"`
	AIFeedback *CollateralFeedback `json:"aiFeedback,omitempty" bson:"aiFeedback,omitempty"`
}

// Itinerary is a bookable trip.
type Itinerary struct {
	ID              string       `json:"id" bson:"_id,omitempty"`
	Title           string       `json:"title" bson:"title"`
	Destination     string       `json:"destination" bson:"destination"`
	Duration        int          `json:"duration" bson:"duration"`
	Price           int          `json:"price" bson:"price"`
	Description     string       `json:"description" bson:"description"`
	AssignedAgentID string       `json:"assignedAgentId,omitempty" bson:"assignedAgentId,omitempty"`
	ImageURL        string       `json:"imageUrl" bson:"imageUrl"`
	Collaterals     []Collateral `json:"collaterals" bson:"collaterals"`
}

// Collateral returns the collateral with the given id.
func (it *Itinerary) Collateral(id string) (*Collateral, bool) {
	for i := range it.Collaterals {
		if it.Collaterals[i].ID == id {
			return &it.Collaterals[i], true
		}
	}
	return nil, false
}

// CollateralPatch carries the collateral fields to change. Nil fields are left as-is.
type CollateralPatch struct {
	Name       *string
	Approved   *bool
	AIFeedback *CollateralFeedback
}

// Empty reports whether the patch changes nothing.
func (p CollateralPatch) Empty() bool {
	return p.Name == nil && p.Approved == nil && p.AIFeedback == nil
}

// Apply writes the set fields onto c.
func (p CollateralPatch) Apply(c *Collateral) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Approved != nil {
		c.Approved = *p.Approved
	}
	if p.AIFeedback != nil {
		fb := *p.AIFeedback
		c.AIFeedback = &fb
	}
}

// Fields returns the set fields keyed by their stored names.
func (p CollateralPatch) Fields() map[string]any {
	set := make(map[string]any, 3)
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Approved != nil {
		set["approved"] = *p.Approved
	}
	if p.AIFeedback != nil {
		fb := *p.AIFeedback
		set["aiFeedback"] = fb
	}
	return set
}

// Recommendation pairs an itinerary with the reason it was suggested.
type Recommendation struct {
	Itinerary Itinerary `json:"itinerary"`
	Reason    string    `json:"reason"`
}
