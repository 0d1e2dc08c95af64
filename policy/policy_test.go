package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, ModeAuto, Normalize(""))
	assert.Equal(t, ModeAuto, Normalize("auto"))
	assert.Equal(t, ModeManual, Normalize(" MANUAL "))
	assert.Equal(t, ModeAuto, Normalize("unknown"))
}

func TestAutoApproves(t *testing.T) {
	var nilPolicy *Policy
	assert.True(t, nilPolicy.AutoApproves(""))
	assert.True(t, nilPolicy.AutoApproves(ModeAuto))
	assert.False(t, nilPolicy.AutoApproves(ModeManual))

	// context policy overrides the declared mode
	override := &Policy{Mode: ModeManual}
	assert.False(t, override.AutoApproves(ModeAuto))
	assert.True(t, (&Policy{Mode: ModeAuto}).AutoApproves(ModeManual))
}

func TestContextRoundTrip(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	ctx := WithPolicy(context.Background(), &Policy{Mode: ModeManual})
	p := FromContext(ctx)
	assert.NotNil(t, p)
	assert.Equal(t, ModeManual, p.Mode)
	assert.Equal(t, context.Background(), WithPolicy(context.Background(), nil))
}
