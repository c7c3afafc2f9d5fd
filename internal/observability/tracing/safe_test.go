package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsContactData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/leads"),
		attribute.String("client_email", "a@b.c"),
		attribute.String("partner.phone", "123"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorTruncatesDetail(t *testing.T) {
	err := SafeError(errors.New("update lead: pq: deadlock detected"))
	assert.EqualError(t, err, "update lead")
	assert.Nil(t, SafeError(nil))
}
