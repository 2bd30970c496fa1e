package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/datatypes"
)

func TestRoomSummaryInput(t *testing.T) {
	tests := []struct {
		name     string
		content  []Annotation
		expected string
	}{
		{"Empty room", nil, ""},
		{"Single selection", []Annotation{{ContentID: 1, Selection: "hello"}}, "hello"},
		{"Keeps content order", []Annotation{
			{ContentID: 1, Selection: "first"},
			{ContentID: 2, Selection: "second"},
			{ContentID: 3, Selection: "third"},
		}, "first second third"},
		{"Empty selections still join", []Annotation{
			{ContentID: 1, Selection: "a"},
			{ContentID: 2, Selection: ""},
			{ContentID: 3, Selection: "b"},
		}, "a  b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Room{Content: datatypes.JSONSlice[Annotation](tt.content)}
			assert.Equal(t, tt.expected, r.SummaryInput())
		})
	}
}

func TestRoomNextContentID(t *testing.T) {
	r := &Room{}
	assert.Equal(t, 1, r.NextContentID())

	r.Content = append(r.Content, Annotation{ContentID: 1}, Annotation{ContentID: 2})
	assert.Equal(t, 3, r.NextContentID())
}

func TestRoomBeforeCreate(t *testing.T) {
	r := &Room{RoomID: "r1"}
	err := r.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, int64(1), r.Revision)
	assert.NotNil(t, r.Content)
	assert.Empty(t, r.Content)
}
