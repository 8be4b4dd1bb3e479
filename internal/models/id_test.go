package models

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	cases := map[string]ID{
		`123`:              "123",
		`"123"`:            "123",
		`"c-9"`:            "c-9",
		`9007199254740993`: "9007199254740993",
		`null`:             "",
	}
	for raw, want := range cases {
		var id ID
		require.NoError(t, json.Unmarshal([]byte(raw), &id), raw)
		assert.Equal(t, want, id, raw)
	}

	var id ID
	assert.Error(t, json.Unmarshal([]byte(`true`), &id))
	assert.Error(t, json.Unmarshal([]byte(`{"id":1}`), &id))
}

func TestRegistrationDecodesBackendShapes(t *testing.T) {
	var reg Registration
	raw := `{"id":7,"userId":42,"course":{"id":123,"name":"Algorithms","instructorId":5},"status":"enrolled","paymentStatus":"paid"}`
	require.NoError(t, json.Unmarshal([]byte(raw), &reg))

	assert.Equal(t, ID("7"), reg.ID)
	assert.Equal(t, ID("42"), reg.UserID)
	assert.Empty(t, reg.CourseID)
	assert.Equal(t, ID("123"), reg.CourseKey())
	assert.Equal(t, ID("5"), reg.Course.InstructorID)
	assert.Equal(t, RegistrationEnrolled, reg.Status)
	assert.Equal(t, PaymentPaid, reg.PaymentStatus)
	assert.True(t, reg.HoldsSeat())
	assert.NoError(t, validator.New().Struct(reg))
}

func TestRegistrationRequiresSomeCourseReference(t *testing.T) {
	reg := Registration{ID: "1", Status: RegistrationEnrolled}

	assert.Error(t, validator.New().Struct(reg))
	assert.Equal(t, ID(""), reg.CourseKey())
}

func TestRegistrationCourseKeyPrefersCourseID(t *testing.T) {
	reg := Registration{CourseID: "a", Course: &Course{ID: "b"}}

	assert.Equal(t, ID("a"), reg.CourseKey())
}
