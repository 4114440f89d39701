package ports

import "context"

// AttributeSource lists the dataset attributes that can be dropped onto the
// canvas.
type AttributeSource interface {
	Attributes(ctx context.Context) ([]string, error)
}

// AttributeInfo is an attribute with the type inferred from the dataset.
type AttributeInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// AttributeDescriber is implemented by sources that can type their
// attributes.
type AttributeDescriber interface {
	DescribeAttributes(ctx context.Context) ([]AttributeInfo, error)
}
