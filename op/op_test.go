package op

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo(Constant)
	require.Equal(t, "CONSTANT", info.Name)
	require.Equal(t, Constant, info.Code)
	require.Equal(t, []Width{Width16}, info.Operands)

	info = GetInfo(Call)
	require.Equal(t, "CALL", info.Name)
	require.Equal(t, []Width{Width8}, info.Operands)

	info = GetInfo(Return)
	require.Equal(t, "RETURN", info.Name)
	require.Empty(t, info.Operands)
}

func TestOpcodesAreUnique(t *testing.T) {
	seen := map[Code]string{}
	for i := 0; i < 256; i++ {
		info := infos[i]
		if info.Name == "" {
			continue
		}
		prev, ok := seen[info.Code]
		require.False(t, ok, "opcode %d used by both %s and %s", info.Code, prev, info.Name)
		seen[info.Code] = info.Name
	}
	require.Greater(t, len(seen), 70)
}

func TestOperatorSymbol(t *testing.T) {
	require.Equal(t, "+", OperatorSymbol(Add))
	require.Equal(t, "==", OperatorSymbol(Equal))
	require.Equal(t, "<=", OperatorSymbol(LessEqual))
	require.Equal(t, "", OperatorSymbol(Jump))
}
