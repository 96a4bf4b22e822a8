package expect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	pass := Run("status is 200", func() error { return That(200).To().Equal(200) })
	assert.True(t, pass.Passed)
	assert.Empty(t, pass.Message)
	assert.Nil(t, pass.Failure)
	assert.Equal(t, "status is 200", pass.Name)

	fail := Run("status is 201", func() error { return That(200).To().Equal(201) })
	assert.False(t, fail.Passed)
	require.NotNil(t, fail.Failure)
	assert.Equal(t, KindEqual, fail.Failure.Kind)
	assert.Equal(t, "expected 200 to equal 201", fail.Message)

	plain := Run("plain error", func() error { return errors.New("boom") })
	assert.False(t, plain.Passed)
	assert.Nil(t, plain.Failure)
	assert.Equal(t, "boom", plain.Message)

	panicked := Run("panics", func() error { panic("bad script") })
	assert.False(t, panicked.Passed)
	assert.Equal(t, "panic: bad script", panicked.Message)
}

func TestSuite(t *testing.T) {
	s := NewSuite("users", false)
	s.Test("one", func() error { return That(1).To().Equal(1) })
	s.Test("two", func() error { return That(1).To().Equal(2) })
	s.Test("three", func() error { return That(3).To().Be().Above(2) })

	assert.Len(t, s.Results(), 3)
	assert.Equal(t, 2, s.Passed())
	assert.Equal(t, 1, s.Failed())
	assert.False(t, s.OK())
	assert.False(t, s.Stopped())
}

func TestSuite_StopOnFailure(t *testing.T) {
	s := NewSuite("users", true)
	ran := 0
	body := func(err error) func() error {
		return func() error {
			ran++
			return err
		}
	}

	assert.True(t, s.Test("one", body(nil)))
	assert.True(t, s.Test("two", body(errors.New("nope"))))
	assert.False(t, s.Test("three", body(nil)))
	assert.False(t, s.Add(TestResult{Name: "four", Passed: true}))

	assert.Equal(t, 2, ran)
	assert.True(t, s.Stopped())
	assert.Len(t, s.Results(), 2)
}
