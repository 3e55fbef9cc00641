package extraction

// Graph is the structured shape requested from the model when schema output is enabled.
// Responses are stored as raw text and never decoded into it.
type Graph struct {
	Entities      []GraphEntity       `json:"entities" jsonschema_description:"Entities explicitly mentioned in the message"`
	Events        []GraphEvent        `json:"events" jsonschema_description:"Events explicitly described in the message"`
	Relationships []GraphRelationship `json:"relationships" jsonschema_description:"Directed relationships between entities and events"`
}

type GraphEntity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type" jsonschema:"enum=user,enum=person,enum=pet,enum=playlist,enum=object,enum=location,enum=organization,enum=platform,enum=degree"`
}

type GraphEvent struct {
	ID          string `json:"id"`
	Type        string `json:"type" jsonschema:"enum=request,enum=action,enum=creation,enum=purchase,enum=attendance,enum=meeting,enum=upgrade,enum=utility"`
	Description string `json:"description"`
}

type GraphRelationship struct {
	Source string `json:"source"`
	Type   string `json:"type"`
	Target string `json:"target"`
}
