package topic

import (
	"reflect"
	"testing"

	"github.com/jeeves-cluster-organization/ddscore/core/ddserrors"
	"github.com/jeeves-cluster-organization/ddscore/core/entity"
	"github.com/jeeves-cluster-organization/ddscore/core/sertype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Foo struct{ A int32 }
type Bar struct{ A int32 }

func newTestTable(t *testing.T) *Table {
	t.Helper()
	p := &Participant{Common: entity.New(entity.KindParticipant, nil, entity.Vtable{})}
	reg := sertype.New()
	n := 0
	return NewTable(p, reg, func() string {
		n++
		return "guid"
	})
}

func mustCompile(t *testing.T, typeName string, goType reflect.Type) *sertype.Type {
	t.Helper()
	st, err := sertype.Compile(typeName, goType, sertype.KindDefault)
	require.NoError(t, err)
	return st
}

func TestScenarioS1KtopicReuse(t *testing.T) {
	tb := newTestTable(t)
	fooDesc := mustCompile(t, "Foo", reflect.TypeOf(Foo{}))
	qosA := QoS{Reliability: "reliable"}

	h1, err := tb.CreateTopic("t", fooDesc, qosA)
	require.NoError(t, err)

	fooDesc2 := mustCompile(t, "Foo", reflect.TypeOf(Foo{}))
	h2, err := tb.CreateTopic("t", fooDesc2, qosA)
	require.NoError(t, err)
	assert.NotSame(t, h1, h2)

	require.NoError(t, tb.DeleteTopic(h1))
	h3, err := tb.FindLocally("t")
	require.NoError(t, err)
	assert.NotNil(t, h3)

	require.NoError(t, tb.DeleteTopic(h2))
	require.NoError(t, tb.DeleteTopic(h3))
	_, err = tb.FindLocally("t")
	require.Error(t, err)
	assert.Equal(t, ddserrors.PreconditionNotMet, ddserrors.KindOf(err))
}

func TestScenarioS2QoSConflict(t *testing.T) {
	tb := newTestTable(t)
	fooDesc := mustCompile(t, "Foo", reflect.TypeOf(Foo{}))
	qosA := QoS{Reliability: "reliable"}
	qosB := QoS{Reliability: "best_effort"}

	_, err := tb.CreateTopic("t", fooDesc, qosA)
	require.NoError(t, err)

	fooDesc2 := mustCompile(t, "Foo", reflect.TypeOf(Foo{}))
	_, err = tb.CreateTopic("t", fooDesc2, qosB)
	require.Error(t, err)
	assert.Equal(t, ddserrors.InconsistentPolicy, ddserrors.KindOf(err))
}

func TestScenarioS3TypeNameConflict(t *testing.T) {
	tb := newTestTable(t)
	fooDesc := mustCompile(t, "Foo", reflect.TypeOf(Foo{}))
	_, err := tb.CreateTopic("t", fooDesc, QoS{})
	require.NoError(t, err)

	barDesc := mustCompile(t, "Bar", reflect.TypeOf(Bar{}))
	_, err = tb.CreateTopic("t", barDesc, QoS{})
	require.Error(t, err)
	assert.Equal(t, ddserrors.PreconditionNotMet, ddserrors.KindOf(err))
}

func TestValidateNameRejectsReservedPrefix(t *testing.T) {
	err := ValidateName("DCPSParticipant")
	require.Error(t, err)
	assert.Equal(t, ddserrors.BadParameter, ddserrors.KindOf(err))
}

func TestValidateNameGrammar(t *testing.T) {
	require.NoError(t, ValidateName("valid_name/with_slash"))
	require.Error(t, ValidateName("1starts_with_digit"))
}

func TestSetGetFilter(t *testing.T) {
	tb := newTestTable(t)
	fooDesc := mustCompile(t, "Foo", reflect.TypeOf(Foo{}))
	top, err := tb.CreateTopic("t", fooDesc, QoS{})
	require.NoError(t, err)

	assert.Nil(t, top.GetFilter())
	top.SetFilter(func(sample any) bool { return true })
	assert.NotNil(t, top.GetFilter())
}
