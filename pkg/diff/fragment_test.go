package diff

import (
	"errors"
	"testing"
)

func mustRoot(t *testing.T, payload string) *Root {
	t.Helper()
	rd, err := ParseRootDiff([]byte(payload))
	if err != nil {
		t.Fatalf("ParseRootDiff: %v", err)
	}
	root, err := NewRoot(rd)
	if err != nil {
		t.Fatalf("NewRoot: %v", err)
	}
	return root
}

func mustMerge(t *testing.T, root *Root, payload string) *Root {
	t.Helper()
	rd, err := ParseRootDiff([]byte(payload))
	if err != nil {
		t.Fatalf("ParseRootDiff: %v", err)
	}
	out, err := root.Merge(rd)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	return out
}

func mustRender(t *testing.T, root *Root) string {
	t.Helper()
	out, err := root.Render()
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	return out
}

func TestSimpleFragmentRender(t *testing.T) {
	const payload = `{
  "0": "cooling",
  "1": "cooling",
  "2": "07:15:03 PM",
  "s": [
    "<div class=\"thermostat\">\n  <div class=\"bar ",
    "\">\n    <a href=\"#\" phx-click=\"toggle-mode\">",
    "</a>\n    <span>",
    "</span>\n  </div>\n</div>\n"
  ]
}`
	root := mustRoot(t, payload)
	want := "<div class=\"thermostat\">\n  <div class=\"bar cooling\">\n    <a href=\"#\" phx-click=\"toggle-mode\">cooling</a>\n    <span>07:15:03 PM</span>\n  </div>\n</div>\n"
	if got := mustRender(t, root); got != want {
		t.Errorf("render = %q, want %q", got, want)
	}

	merged := mustMerge(t, root, `{"2": "07:15:04 PM"}`)
	got := mustRender(t, merged)
	wantUpdated := "<div class=\"thermostat\">\n  <div class=\"bar cooling\">\n    <a href=\"#\" phx-click=\"toggle-mode\">cooling</a>\n    <span>07:15:04 PM</span>\n  </div>\n</div>\n"
	if got != wantUpdated {
		t.Errorf("merged render = %q, want %q", got, wantUpdated)
	}
}

func TestDecodeChildKinds(t *testing.T) {
	rd, err := ParseRootDiff([]byte(`{"0": "lit", "1": 7, "2": {"0": "x", "s": ["a", "b"]}}`))
	if err != nil {
		t.Fatalf("ParseRootDiff: %v", err)
	}
	f := rd.Fragment
	if f.Kind != FragmentRegular {
		t.Fatalf("kind = %v", f.Kind)
	}
	if f.Children["0"].Literal == nil || *f.Children["0"].Literal != "lit" {
		t.Error("child 0 not decoded as literal")
	}
	if f.Children["1"].ComponentID == nil || *f.Children["1"].ComponentID != 7 {
		t.Error("child 1 not decoded as component id")
	}
	if f.Children["2"].Fragment == nil || f.Children["2"].Fragment.Statics == nil {
		t.Error("child 2 not decoded as fragment diff")
	}
}

func TestDecodeComprehensionWithTemplates(t *testing.T) {
	rd, err := ParseRootDiff([]byte(`{
		"d": [["foo", 1], ["bar", 1]],
		"p": {"0": ["\n    bar ", "\n  "]}
	}`))
	if err != nil {
		t.Fatalf("ParseRootDiff: %v", err)
	}
	f := rd.Fragment
	if f.Kind != FragmentComprehension {
		t.Fatalf("kind = %v", f.Kind)
	}
	if len(f.Dynamics) != 2 || len(f.Dynamics[0]) != 2 {
		t.Fatalf("dynamics = %+v", f.Dynamics)
	}
	if len(f.Templates["0"]) != 2 {
		t.Errorf("templates = %+v", f.Templates)
	}
}

func TestDecodeStaticsForms(t *testing.T) {
	rd, err := ParseRootDiff([]byte(`{"d": [["x"]], "s": 3}`))
	if err != nil {
		t.Fatalf("ParseRootDiff: %v", err)
	}
	s := rd.Fragment.Statics
	if s == nil || !s.IsRef || s.TemplateRef != 3 {
		t.Errorf("statics = %+v", s)
	}
}

func TestMergeReplacesWhenStaticsPresent(t *testing.T) {
	root := mustRoot(t, `{"0": "a", "s": ["x", "y"]}`)
	merged := mustMerge(t, root, `{"0": "b", "s": ["q", "r"]}`)
	if got := mustRender(t, merged); got != "qbr" {
		t.Errorf("render = %q, want %q", got, "qbr")
	}
}

func TestMergePreservesAbsentChildren(t *testing.T) {
	root := mustRoot(t, `{"0": "a", "1": "b", "s": ["", "|", ""]}`)
	merged := mustMerge(t, root, `{"1": "B"}`)
	if got := mustRender(t, merged); got != "a|B" {
		t.Errorf("render = %q, want %q", got, "a|B")
	}
}

func TestMergeUnknownChildKeyFails(t *testing.T) {
	root := mustRoot(t, `{"0": "a", "s": ["", ""]}`)
	rd, err := ParseRootDiff([]byte(`{"5": "x"}`))
	if err != nil {
		t.Fatalf("ParseRootDiff: %v", err)
	}
	if _, err := root.Merge(rd); !errors.Is(err, ErrAddChildToExisting) {
		t.Errorf("Merge error = %v, want ErrAddChildToExisting", err)
	}
}

func TestMergeComprehensionReplacesDynamics(t *testing.T) {
	root := mustRoot(t, `{"0": {"d": [["a"], ["b"]], "s": ["<i>", "</i>"]}, "s": ["", ""]}`)
	if got := mustRender(t, root); got != "<i>a</i><i>b</i>" {
		t.Fatalf("initial render = %q", got)
	}
	merged := mustMerge(t, root, `{"0": {"d": [["c"]]}}`)
	if got := mustRender(t, merged); got != "<i>c</i>" {
		t.Errorf("merged render = %q, want %q", got, "<i>c</i>")
	}
}

func TestMergeTypeMismatchFails(t *testing.T) {
	root := mustRoot(t, `{"0": {"d": [["a"]], "s": ["", ""]}, "s": ["", ""]}`)
	rd, err := ParseRootDiff([]byte(`{"0": {"0": "x"}}`))
	if err != nil {
		t.Fatalf("ParseRootDiff: %v", err)
	}
	if _, err := root.Merge(rd); !errors.Is(err, ErrFragmentTypeMismatch) {
		t.Errorf("Merge error = %v, want ErrFragmentTypeMismatch", err)
	}
}

func TestComprehensionWithTemplateRender(t *testing.T) {
	root := mustRoot(t, `{
		"0": {
			"d": [["foo", {"d": [["0", "1"], ["1", "2"]], "s": 0}]],
			"s": ["\n  <p>\n    ", "\n    ", "\n  </p>\n"],
			"p": {"0": ["<span>", ": ", "</span>"]}
		},
		"s": ["<div>", "</div>"]
	}`)
	want := "<div>\n  <p>\n    foo\n    <span>0: 1</span><span>1: 2</span>\n  </p>\n</div>"
	if got := mustRender(t, root); got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestTemplateNotFound(t *testing.T) {
	root := mustRoot(t, `{"0": {"d": [["x"]], "s": 9, "p": {"0": ["a", "b"]}}, "s": ["", ""]}`)
	_, err := root.Render()
	var tmplErr *TemplateNotFoundError
	if !errors.As(err, &tmplErr) || tmplErr.ID != 9 {
		t.Errorf("Render error = %v, want TemplateNotFoundError{9}", err)
	}
}

func TestComprehensionWithoutTemplatesFails(t *testing.T) {
	root := mustRoot(t, `{"0": {"d": [["x"]], "s": 0}, "s": ["", ""]}`)
	if _, err := root.Render(); !errors.Is(err, ErrNoTemplates) {
		t.Errorf("Render error = %v, want ErrNoTemplates", err)
	}
}

const groupComponentsDiff = `{
	"0": {
		"0": {
			"d": [[1], [2], [3]],
			"s": ["\n  ", "\n"]
		},
		"s": ["", ""]
	},
	"c": {
		"1": {
			"0": {
				"d": [["3"], ["4"], ["5"]],
				"s": ["\n    <Text>Item ", "</Text>\n"]
			},
			"s": ["<Group>\n", "\n</Group>"]
		},
		"2": {
			"0": {"d": [["6"], ["7"], ["8"]]},
			"s": 1
		},
		"3": {
			"0": {"d": [["9"], ["10"], ["11"]]},
			"s": 1
		}
	},
	"s": ["<div>", "</div>"]
}`

func TestComponentRefStaticsShareCousinTemplates(t *testing.T) {
	root := mustRoot(t, groupComponentsDiff)
	want := "<div>\n  <Group>\n\n    <Text>Item 3</Text>\n\n    <Text>Item 4</Text>\n\n    <Text>Item 5</Text>\n\n</Group>\n\n  <Group>\n\n    <Text>Item 6</Text>\n\n    <Text>Item 7</Text>\n\n    <Text>Item 8</Text>\n\n</Group>\n\n  <Group>\n\n    <Text>Item 9</Text>\n\n    <Text>Item 10</Text>\n\n    <Text>Item 11</Text>\n\n</Group>\n</div>"
	if got := mustRender(t, root); got != want {
		t.Errorf("render = %q, want %q", got, want)
	}
}

func TestComponentStaticsReplacement(t *testing.T) {
	root := mustRoot(t, `{
		"0": {"0": 1, "s": ["", ""]},
		"c": {"1": {"0": {"d": [["0", "foo"], ["1", "bar"]], "s": ["", "-", ""]}, "s": ["", ""]}},
		"s": ["<div>", "</div>"]
	}`)
	if got := mustRender(t, root); got != "<div>0-foo1-bar</div>" {
		t.Fatalf("initial render = %q", got)
	}

	merged := mustMerge(t, root, `{"c": {"1": {"0": {"d": [["0", "foo"], ["1", "bar"]], "s": ["(", ")", ""]}, "s": ["", ""]}}}`)
	if got := mustRender(t, merged); got != "<div>(0)foo(1)bar</div>" {
		t.Errorf("merged render = %q, want %q", got, "<div>(0)foo(1)bar</div>")
	}
}

func TestComponentChildUpdateMerges(t *testing.T) {
	root := mustRoot(t, `{
		"0": {"0": 1, "s": ["", ""]},
		"c": {"1": {"0": "old", "s": ["<b>", "</b>"]}},
		"s": ["<div>", "</div>"]
	}`)
	if got := mustRender(t, root); got != "<div><b>old</b></div>" {
		t.Fatalf("initial render = %q", got)
	}
	merged := mustMerge(t, root, `{"c": {"1": {"0": "new"}}}`)
	if got := mustRender(t, merged); got != "<div><b>new</b></div>" {
		t.Errorf("merged render = %q, want %q", got, "<div><b>new</b></div>")
	}
}

func TestNegativeComponentIDResolvesPreviousGeneration(t *testing.T) {
	root := mustRoot(t, `{
		"0": 1,
		"c": {"1": {"0": "hi", "s": ["<b>", "</b>"]}},
		"s": ["", ""]
	}`)
	if got := mustRender(t, root); got != "<b>hi</b>" {
		t.Fatalf("initial render = %q", got)
	}

	// The next generation replaces component 1, but the child refers to the
	// previous generation by negative id.
	merged := mustMerge(t, root, `{
		"0": -1,
		"c": {"1": {"0": "new", "s": ["<i>", "</i>"]}}
	}`)
	if got := mustRender(t, merged); got != "<b>hi</b>" {
		t.Errorf("merged render = %q, want %q (previous generation)", got, "<b>hi</b>")
	}
}

func TestMissingComponentFails(t *testing.T) {
	rd, err := ParseRootDiff([]byte(`{"0": 9, "s": ["", ""]}`))
	if err != nil {
		t.Fatalf("ParseRootDiff: %v", err)
	}
	_, err = NewRoot(rd)
	var missing *MissingComponentError
	if !errors.As(err, &missing) || missing.ID != 9 {
		t.Errorf("NewRoot error = %v, want MissingComponentError{9}", err)
	}
}

func TestComponentIDChildConvertsToFragment(t *testing.T) {
	root := mustRoot(t, `{
		"0": 1,
		"c": {"1": {"0": "x", "s": ["<b>", "</b>"]}},
		"s": ["", ""]
	}`)
	merged := mustMerge(t, root, `{"0": {"0": "inline", "s": ["[", "]"]}}`)
	if got := mustRender(t, merged); got != "[inline]" {
		t.Errorf("merged render = %q, want %q", got, "[inline]")
	}
}

func TestReplyFlagSurvivesMerge(t *testing.T) {
	root := mustRoot(t, `{"0": "a", "s": ["", ""], "r": 1}`)
	if root.Fragment.Reply == nil || !*root.Fragment.Reply {
		t.Fatal("reply flag not decoded")
	}
	merged := mustMerge(t, root, `{"0": "b"}`)
	if merged.Fragment.Reply == nil || !*merged.Fragment.Reply {
		t.Error("reply flag lost in merge")
	}
}

func TestStreamInsertAppends(t *testing.T) {
	root := mustRoot(t, `{
		"0": {
			"d": [[" id=\"songs-1\"", "One"]],
			"s": ["<li", ">", "</li>"],
			"stream": ["songs", [["songs-1", -1, null]], []]
		},
		"s": ["<ul>", "</ul>"]
	}`)
	if got := mustRender(t, root); got != `<ul><li id="songs-1">One</li></ul>` {
		t.Fatalf("initial render = %q", got)
	}

	merged := mustMerge(t, root, `{
		"0": {
			"d": [[" id=\"songs-2\"", "Two"]],
			"stream": ["songs", [["songs-2", -1, null]], []]
		}
	}`)
	want := `<ul><li id="songs-1">One</li><li id="songs-2">Two</li></ul>`
	if got := mustRender(t, merged); got != want {
		t.Errorf("after insert = %q, want %q", got, want)
	}
}

func TestStreamDeleteRemovesRow(t *testing.T) {
	root := mustRoot(t, `{
		"0": {
			"d": [[" id=\"songs-1\"", "One"], [" id=\"songs-2\"", "Two"]],
			"s": ["<li", ">", "</li>"],
			"stream": ["songs", [["songs-1", -1, null], ["songs-2", -1, null]], []]
		},
		"s": ["<ul>", "</ul>"]
	}`)
	merged := mustMerge(t, root, `{
		"0": {"d": [], "stream": ["songs", [], ["songs-1"]]}
	}`)
	want := `<ul><li id="songs-2">Two</li></ul>`
	if got := mustRender(t, merged); got != want {
		t.Errorf("after delete = %q, want %q", got, want)
	}
}

func TestStreamResetSeedsFromIncoming(t *testing.T) {
	root := mustRoot(t, `{
		"0": {
			"d": [[" id=\"songs-1\"", "One"]],
			"s": ["<li", ">", "</li>"],
			"stream": ["songs", [["songs-1", -1, null]], []]
		},
		"s": ["<ul>", "</ul>"]
	}`)
	merged := mustMerge(t, root, `{
		"0": {
			"d": [[" id=\"songs-9\"", "Nine"]],
			"stream": ["songs", [["songs-9", -1, null]], [], true]
		}
	}`)
	want := `<ul><li id="songs-9">Nine</li></ul>`
	if got := mustRender(t, merged); got != want {
		t.Errorf("after reset = %q, want %q", got, want)
	}
}

func TestStreamIDMismatchFails(t *testing.T) {
	root := mustRoot(t, `{
		"0": {
			"d": [[" id=\"songs-1\"", "One"]],
			"s": ["<li", ">", "</li>"],
			"stream": ["songs", [["songs-1", -1, null]], []]
		},
		"s": ["<ul>", "</ul>"]
	}`)
	rd, err := ParseRootDiff([]byte(`{"0": {"d": [], "stream": ["other", [], []]}}`))
	if err != nil {
		t.Fatalf("ParseRootDiff: %v", err)
	}
	if _, err := root.Merge(rd); !errors.Is(err, ErrStreamIDMismatch) {
		t.Errorf("Merge error = %v, want ErrStreamIDMismatch", err)
	}
}

func TestTitleDecoded(t *testing.T) {
	rd, err := ParseRootDiff([]byte(`{"0": "x", "s": ["", ""], "t": "Dashboard"}`))
	if err != nil {
		t.Fatalf("ParseRootDiff: %v", err)
	}
	if rd.Title == nil || *rd.Title != "Dashboard" {
		t.Errorf("title = %v", rd.Title)
	}
}
