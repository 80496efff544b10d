package estimator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wham/apigen/internal/fieldtype"
	"github.com/wham/apigen/internal/schema"
	st "github.com/wham/apigen/internal/schematest"
)

func estimate(t *testing.T, m *schema.Message, dir schema.Source) (int, error) {
	t.Helper()
	var fields []fieldtype.TypeInfo
	for _, f := range m.ActiveFields() {
		ti, err := fieldtype.New(m, f, dir)
		require.NoError(t, err)
		fields = append(fields, ti)
	}
	return Message(m, fields)
}

func TestMessageEstimate(t *testing.T) {
	f := st.Build(
		st.Enum("Mode", "MODE_OFF"),
		st.Message("Info"),
		st.Message("State",
			st.Field("key", 1, st.Fixed32),
			st.Field("on", 2, st.Bool),
			st.Field("level", 3, st.Int32),
			st.EnumField("mode", 4, "Mode"),
			st.Field("name", 5, st.String),
			st.MessageField("info", 6, "Info"),
			st.Repeated(st.Field("values", 7, st.Float)),
			st.Deprecated(st.Field("legacy", 8, st.String)),
			st.FixedArraySize(st.Field("mac", 9, st.Bytes), 6),
			st.FixedArraySize(st.Repeated(st.Field("ids", 10, st.Uint32)), 3),
		),
	)

	est, err := estimate(t, f.Message("State"), schema.SourceServer)
	require.NoError(t, err)
	want := 5 + 2 + 4 + 2 + 9 + 17 + 2*5 + (1 + 1 + 6) + 3*4
	assert.Equal(t, want, est)
}

func TestEmptyMessage(t *testing.T) {
	f := st.Build(st.ID(st.Message("Ping"), 1))

	est, err := estimate(t, f.Message("Ping"), schema.SourceBoth)
	require.NoError(t, err)
	assert.Zero(t, est)
}

func TestEstimateExceedsMaximum(t *testing.T) {
	m := st.Message("Huge")
	for i := int32(1); i <= 30; i++ {
		m.Field = append(m.Field, st.Field(fmt.Sprintf("f%d", i), i, st.String))
	}
	f := st.Build(st.ID(m, 1))

	_, err := estimate(t, f.Message("Huge"), schema.SourceBoth)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Huge: estimated size")
	assert.Contains(t, err.Error(), "exceeds maximum of 255")

	var verr *schema.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestCheckBoundary(t *testing.T) {
	assert.NoError(t, Check("M", Max))
	assert.Error(t, Check("M", Max+1))
}
