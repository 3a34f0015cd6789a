package extractor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGraph = `graph():
    %x : [num_users=1] = placeholder[target=x]
    %conv2d : [num_users=1] = call_function[target=torch.ops.aten.conv2d.default](args = (%x, %w), kwargs = {})
    %relu : [num_users=1] = call_function[target=torch.ops.aten.relu.default](args = (%conv2d,), kwargs = {})
    %relu_1 : [num_users=1] = call_function[target=torch.ops.aten.relu.default](args = (%relu,), kwargs = {})
    %getitem : [num_users=1] = call_function[target=operator.getitem](args = (%relu_1, 0), kwargs = {})
    %view : [num_users=1] = call_method[target=view](args = (%getitem, -1), kwargs = {})
    return (view,)
`

func TestExtract(t *testing.T) {
	ops, err := Extract(sampleGraph)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"operator.getitem",
		"torch.ops.aten.conv2d.default",
		"torch.ops.aten.relu.default",
	}, ops)
}

func TestExtract_NoCallSites(t *testing.T) {
	_, err := Extract("graph():\n    %x : [num_users=1] = placeholder[target=x]\n    return (x,)\n")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoCallSites))

	_, err = Extract("")
	assert.True(t, errors.Is(err, ErrNoCallSites))
}

func TestExtract_IdentifierStopsAtNonIdentifierChar(t *testing.T) {
	ops, err := Extract("call_function[target=aten.add.Tensor](a, b)\ncall_function[target=my_op.v2-extra]")
	require.NoError(t, err)
	assert.Equal(t, []string{"aten.add.Tensor", "my_op.v2"}, ops)
}

func TestCount(t *testing.T) {
	counts := Count(sampleGraph)
	assert.Equal(t, 2, counts["torch.ops.aten.relu.default"])
	assert.Equal(t, 1, counts["torch.ops.aten.conv2d.default"])
	assert.NotContains(t, counts, "view")
}
