package function_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/on-the-ground/funcbox/archive"
	"github.com/on-the-ground/funcbox/function"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scale struct{ Factor int }

func (s scale) Call(x int) int { return x * s.Factor }

func (s scale) SaveObject(ar *archive.Output, _ uint32) error {
	return ar.Write(s.Factor)
}

func (s *scale) LoadObject(ar *archive.Input, _ uint32) error {
	return ar.Read(&s.Factor)
}

// greeter has a string and a slice, so it is stored externally.
type greeter struct {
	Prefix string
	Names  []string
}

func (g greeter) Call(i int) string { return g.Prefix + " " + g.Names[i] }

func (g greeter) SaveObject(ar *archive.Output, _ uint32) error {
	if err := ar.WriteString(g.Prefix); err != nil {
		return err
	}
	return ar.Write(g.Names)
}

func (g *greeter) LoadObject(ar *archive.Input, _ uint32) error {
	var err error
	if g.Prefix, err = ar.ReadString(); err != nil {
		return err
	}
	return ar.Read(&g.Names)
}

// versioned checks that the version given to save reaches load.
type versioned struct{ Seen uint32 }

func (v versioned) Call(int) int { return int(v.Seen) }

func (v versioned) SaveObject(ar *archive.Output, version uint32) error {
	return ar.WriteUint(uint64(version))
}

func (v *versioned) LoadObject(ar *archive.Input, version uint32) error {
	saved, err := ar.ReadUint()
	if err != nil {
		return err
	}
	if uint32(saved) != version {
		return fmt.Errorf("saved with version %d, loading with %d", saved, version)
	}
	v.Seen = version
	return nil
}

var errBroken = errors.New("broken payload")

type broken struct{}

func (broken) Call(x int) int { return x }

func (broken) SaveObject(*archive.Output, uint32) error { return nil }

func (*broken) LoadObject(*archive.Input, uint32) error { return errBroken }

type renamed struct{ N int }

func (r renamed) Call(x int) int { return x - r.N }

func (r renamed) SaveObject(ar *archive.Output, _ uint32) error { return ar.Write(r.N) }

func (r *renamed) LoadObject(ar *archive.Input, _ uint32) error { return ar.Read(&r.N) }

type impostor struct{}

func (impostor) Call(x int) int { return x }

func (impostor) SaveObject(*archive.Output, uint32) error { return nil }

func (*impostor) LoadObject(*archive.Input, uint32) error { return nil }

type observed struct{}

func (observed) Call(x int) int { return x }

func (observed) SaveObject(*archive.Output, uint32) error { return nil }

func (*observed) LoadObject(*archive.Input, uint32) error { return nil }

var trackedReleases atomic.Int32

type tracked struct{ N int }

func (tr tracked) Call(x int) int { return x + tr.N }

func (tr tracked) Release() { trackedReleases.Add(1) }

func (tr tracked) SaveObject(ar *archive.Output, _ uint32) error { return ar.Write(tr.N) }

func (tr *tracked) LoadObject(ar *archive.Input, _ uint32) error { return ar.Read(&tr.N) }

func save(t *testing.T, s interface {
	Save(*archive.Output, uint32) error
}, version uint32) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, s.Save(archive.NewOutput(&buf), version))
	return &buf
}

func TestSerializable_RoundTripInline(t *testing.T) {
	src := function.NewSerializable[int, int](scale{Factor: 3})
	require.Equal(t, function.Inline, src.Location())

	buf := save(t, src, 0)

	var dst function.SerializableFunction[int, int]
	require.NoError(t, dst.Load(archive.NewInput(buf), 0))

	require.True(t, dst.Valid())
	p, ok := function.Target[scale](&dst)
	require.True(t, ok)
	assert.Equal(t, scale{Factor: 3}, *p)
	assert.Equal(t, function.Inline, dst.Location())
	for x := -5; x <= 5; x++ {
		assert.Equal(t, src.Call(x), dst.Call(x))
	}
}

func TestSerializable_RoundTripExternal(t *testing.T) {
	src := function.NewSerializable[int, string](greeter{Prefix: "hello", Names: []string{"ann", "bob"}})
	require.Equal(t, function.External, src.Location())

	data, err := src.MarshalBinary()
	require.NoError(t, err)

	var dst function.SerializableFunction[int, string]
	require.NoError(t, dst.UnmarshalBinary(data))

	p, ok := function.Target[greeter](&dst)
	require.True(t, ok)
	assert.Equal(t, greeter{Prefix: "hello", Names: []string{"ann", "bob"}}, *p)
	assert.Equal(t, "hello bob", dst.Call(1))
	assert.Equal(t, function.External, dst.Location())
}

func TestSerializable_RoundTripEmpty(t *testing.T) {
	var src function.SerializableFunction[int, int]
	buf := save(t, &src, 0)

	dst := function.NewSerializable[int, int](scale{Factor: 2})
	require.NoError(t, dst.Load(archive.NewInput(buf), 0))
	assert.True(t, dst.Empty())
	assert.Empty(t, dst.Name())
}

func TestSerializable_UniqueRoundTrip(t *testing.T) {
	src := function.NewSerializableUnique[int, int](scale{Factor: 5})
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	var dst function.SerializableUniqueFunction[int, int]
	require.NoError(t, dst.UnmarshalBinary(data))
	assert.Equal(t, 50, dst.Call(10))
}

func TestSerializable_VersionPassedThrough(t *testing.T) {
	src := function.NewSerializable[int, int](versioned{})
	buf := save(t, src, 7)

	var dst function.SerializableFunction[int, int]
	require.NoError(t, dst.Load(archive.NewInput(buf), 7))
	assert.Equal(t, 7, dst.Call(0))

	buf = save(t, src, 7)
	err := dst.Load(archive.NewInput(buf), 8)
	assert.Error(t, err)
	assert.True(t, dst.Empty())
}

func TestSerializable_UnknownTypeFailsCleanly(t *testing.T) {
	var buf bytes.Buffer
	out := archive.NewOutput(&buf)
	require.NoError(t, out.WriteBool(false))
	require.NoError(t, out.WriteString("example.com/never/registered.Type"))
	require.NoError(t, out.Write(42))

	f := function.NewSerializable[int, int](scale{Factor: 2})
	err := f.Load(archive.NewInput(&buf), 0)

	assert.ErrorIs(t, err, function.ErrUnknownType)
	assert.True(t, f.Empty())
	assert.Empty(t, f.Name())
	_, err = f.Invoke(1)
	assert.ErrorIs(t, err, function.ErrEmptyFunction)
}

func TestSerializable_UnknownForSignature(t *testing.T) {
	// scale is registered for (int) int only
	src := function.NewSerializable[int, int](scale{Factor: 2})
	buf := save(t, src, 0)

	var other function.SerializableFunction[string, int]
	err := other.Load(archive.NewInput(buf), 0)
	assert.ErrorIs(t, err, function.ErrUnknownType)
}

func TestSerializable_PayloadLoadErrorLeavesEmpty(t *testing.T) {
	src := function.NewSerializable[int, int](broken{})
	buf := save(t, src, 0)

	dst := function.NewSerializable[int, int](scale{Factor: 2})
	err := dst.Load(archive.NewInput(buf), 0)
	assert.ErrorIs(t, err, errBroken)
	assert.True(t, dst.Empty())
}

func TestSerializable_TruncatedStreamLeavesEmpty(t *testing.T) {
	src := function.NewSerializable[int, string](greeter{Prefix: "hi", Names: []string{"x"}})
	data, err := src.MarshalBinary()
	require.NoError(t, err)

	var dst function.SerializableFunction[int, string]
	err = dst.UnmarshalBinary(data[:len(data)-2])
	assert.ErrorIs(t, err, archive.ErrTruncated)
	assert.True(t, dst.Empty())
}

func TestSerializable_DefaultNameRegisteredOnFirstUse(t *testing.T) {
	f := function.NewSerializable[int, int](scale{Factor: 1})
	name := "github.com/on-the-ground/funcbox/function_test.scale"

	assert.Equal(t, name, f.Name())
	assert.Contains(t, function.RegisteredNames[int, int](), name)
	require.NoError(t, function.Register[int, int, scale]())
}

func TestSerializable_RegisterName(t *testing.T) {
	require.NoError(t, function.RegisterName[int, int, renamed]("custom.renamed"))
	require.NoError(t, function.RegisterName[int, int, renamed]("custom.renamed"))

	err := function.RegisterName[int, int, renamed]("custom.other")
	assert.ErrorIs(t, err, function.ErrNameMismatch)

	err = function.RegisterName[int, int, impostor]("custom.renamed")
	assert.ErrorIs(t, err, function.ErrDuplicateName)

	f := function.NewSerializable[int, int](renamed{N: 1})
	assert.Equal(t, "custom.renamed", f.Name())

	var dst function.SerializableFunction[int, int]
	require.NoError(t, dst.Load(archive.NewInput(save(t, f, 0)), 0))
	assert.Equal(t, 9, dst.Call(10))
}

func TestSerializable_RegistrationIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := function.SetLogger(zap.New(core))
	defer function.SetLogger(prev)

	function.MustRegister[int, int, observed]()

	entries := logs.FilterMessage("registered serializable type").All()
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].ContextMap()["name"].(string), ".observed"))
}

func TestSerializable_MoveSwapCopyKeepName(t *testing.T) {
	a := function.NewSerializable[int, int](scale{Factor: 2})
	var b function.SerializableFunction[int, int]

	b.MoveFrom(a)
	assert.Empty(t, a.Name())
	assert.NotEmpty(t, b.Name())

	a.Swap(&b)
	assert.NotEmpty(t, a.Name())
	assert.Empty(t, b.Name())

	b.CopyFrom(a)
	assert.Equal(t, a.Name(), b.Name())
	assert.Equal(t, 8, b.Call(4))

	c := b.Clone()
	b.Reset()
	assert.Empty(t, b.Name())
	assert.Equal(t, a.Name(), c.Name())

	// a copy of a loaded function saves like the original
	data, err := c.MarshalBinary()
	require.NoError(t, err)
	var d function.SerializableUniqueFunction[int, int]
	require.NoError(t, d.UnmarshalBinary(data))
	assert.Equal(t, 6, d.Call(3))
}

func TestSerializable_AssignReusesStorage(t *testing.T) {
	var f function.SerializableFunction[int, string]
	function.AssignSerializable(&f, greeter{Prefix: "a", Names: []string{"x"}})
	before, _ := function.Target[greeter](&f)

	function.AssignSerializable(&f, greeter{Prefix: "b", Names: []string{"y"}})
	after, _ := function.Target[greeter](&f)

	assert.Same(t, before, after)
	assert.Equal(t, "b y", f.Call(0))

	var u function.SerializableUniqueFunction[int, int]
	function.AssignSerializableUnique(&u, scale{Factor: 4})
	assert.Equal(t, 8, u.Call(2))
}

func TestSerializable_LoadReleasesPrevious(t *testing.T) {
	data, err := function.NewSerializable[int, int](scale{Factor: 3}).MarshalBinary()
	require.NoError(t, err)

	f := function.NewSerializable[int, int](tracked{N: 1})
	before := trackedReleases.Load()

	require.NoError(t, f.UnmarshalBinary(data))
	assert.Equal(t, before+1, trackedReleases.Load())
	assert.Equal(t, 6, f.Call(2))
}
