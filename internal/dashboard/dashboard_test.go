package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psbr27/testPilotOne/internal/types"
)

type recordingSink struct {
	got []types.TestResult
}

func (r *recordingSink) Notify(result types.TestResult) {
	r.got = append(r.got, result)
}

func TestNoOp_DiscardsNotifications(t *testing.T) {
	assert.NotPanics(t, func() {
		NoOp{}.Notify(types.TestResult{TestName: "t1"})
	})
}

func TestMulti_FansOutToEverySinkInOrder(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := Multi{a, b}

	m.Notify(types.TestResult{TestName: "t1"})

	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)
	assert.Equal(t, "t1", a.got[0].TestName)
}

func TestMulti_EmptyIsSafe(t *testing.T) {
	var m Multi
	assert.NotPanics(t, func() { m.Notify(types.TestResult{}) })
}
