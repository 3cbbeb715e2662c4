package diff

import (
	"testing"

	"github.com/livenative-dev/livenative/pkg/dom"
)

func mustParse(t *testing.T, input string) *dom.Document {
	t.Helper()
	doc, err := dom.Parse(input)
	if err != nil {
		t.Fatalf("Parse(%q): %v", input, err)
	}
	return doc
}

func applyAll(t *testing.T, doc *dom.Document, patches []Patch) {
	t.Helper()
	ed := doc.Edit()
	var stack []dom.NodeRef
	for _, p := range patches {
		p.Apply(ed, &stack)
	}
}

// roundTrip diffs from→to, applies the patches to from, and verifies the
// rendered strings agree.
func roundTrip(t *testing.T, fromMarkup, toMarkup string) []Patch {
	t.Helper()
	from := mustParse(t, fromMarkup)
	to := mustParse(t, toMarkup)
	patches := Diff(from, to)
	applyAll(t, from, patches)
	if got, want := from.RenderCompact(), to.RenderCompact(); got != want {
		t.Errorf("round trip mismatch:\n got  %q\n want %q\n patches: %v", got, want, patchKinds(patches))
	}
	return patches
}

func patchKinds(patches []Patch) []string {
	out := make([]string, len(patches))
	for i, p := range patches {
		out[i] = p.Kind.String()
	}
	return out
}

func TestDiffEqualDocumentsIsEmpty(t *testing.T) {
	inputs := []string{
		`<div></div>`,
		`<div class="x"><span>hi</span><span>there</span></div>`,
		`<ul><li id="a">A</li><li id="b">B</li></ul>`,
	}
	for _, input := range inputs {
		from := mustParse(t, input)
		to := mustParse(t, input)
		if patches := Diff(from, to); len(patches) != 0 {
			t.Errorf("Diff(D, D) for %q = %v, want none", input, patchKinds(patches))
		}
	}
}

func TestDiffLeafChange(t *testing.T) {
	patches := roundTrip(t, `<span>old</span>`, `<span>new</span>`)
	if len(patches) != 1 || patches[0].Kind != PatchReplace {
		t.Errorf("patches = %v, want single Replace", patchKinds(patches))
	}
}

func TestDiffAttributeChange(t *testing.T) {
	patches := roundTrip(t, `<div class="a">x</div>`, `<div class="b">x</div>`)
	if len(patches) != 1 || patches[0].Kind != PatchSetAttributes {
		t.Errorf("patches = %v, want single SetAttributes", patchKinds(patches))
	}
}

func TestDiffAppendNodes(t *testing.T) {
	roundTrip(t, `<ul><li>a</li></ul>`, `<ul><li>a</li><li>b</li><li>c</li></ul>`)
}

func TestDiffRemoveTrailingNodes(t *testing.T) {
	patches := roundTrip(t, `<ul><li>a</li><li>b</li></ul>`, `<ul><li>a</li></ul>`)
	var removes int
	for _, p := range patches {
		if p.Kind == PatchRemove {
			removes++
		}
	}
	if removes == 0 {
		t.Errorf("patches = %v, want a Remove", patchKinds(patches))
	}
}

func TestDiffInsertIntoEmpty(t *testing.T) {
	roundTrip(t, `<div></div>`, `<div><span>one</span><b>two</b></div>`)
}

func TestDiffRemoveAll(t *testing.T) {
	roundTrip(t, `<div><span>one</span><b>two</b></div>`, `<div></div>`)
}

func TestDiffNestedGrowth(t *testing.T) {
	roundTrip(t,
		`<div><section><p>a</p></section></div>`,
		`<div><section><p>a</p><p>b</p><ul><li>x</li><li>y</li></ul></section></div>`)
}

func TestDiffLeafToElement(t *testing.T) {
	roundTrip(t, `<div>text</div>`, `<div><span>text</span></div>`)
}

func TestDiffElementToLeaf(t *testing.T) {
	roundTrip(t, `<div><span>text</span></div>`, `<div>text</div>`)
}

func TestKeyedRelocationSwap(t *testing.T) {
	patches := roundTrip(t,
		`<ul><li id="a">A</li><li id="b">B</li></ul>`,
		`<ul><li id="b">B</li><li id="a">A</li></ul>`)

	var sawDetach bool
	for _, p := range patches {
		switch p.Kind {
		case PatchDetach:
			sawDetach = true
		case PatchCreate, PatchCreateAndMoveTo:
			if p.Data.Kind == dom.KindElement {
				if id, ok := p.Data.ID(); ok && (id == "a" || id == "b") {
					t.Errorf("keyed element %q re-created instead of relocated", id)
				}
			}
		case PatchRemove:
			t.Errorf("keyed swap emitted Remove; patches = %v", patchKinds(patches))
		}
	}
	if !sawDetach {
		t.Errorf("keyed swap emitted no Detach; patches = %v", patchKinds(patches))
	}
}

func TestKeyedRelocationPreservesSubtree(t *testing.T) {
	from := mustParse(t, `<div><ul id="x"><li>deep</li><li>tree</li></ul><p>after</p></div>`)
	to := mustParse(t, `<div><p>after</p><ul id="x"><li>deep</li><li>tree</li></ul></div>`)

	patches := Diff(from, to)
	for _, p := range patches {
		if p.Kind == PatchCreate || p.Kind == PatchCreateAndMoveTo {
			if p.Data.Kind == dom.KindLeaf && (p.Data.Text == "deep" || p.Data.Text == "tree") {
				t.Errorf("keyed subtree content re-created; patches = %v", patchKinds(patches))
			}
		}
	}
	applyAll(t, from, patches)
	if got, want := from.RenderCompact(), to.RenderCompact(); got != want {
		t.Errorf("round trip mismatch:\n got  %q\n want %q", got, want)
	}
}

func TestKeyedRemovalKeepsWantedDescendants(t *testing.T) {
	// The removed container holds a keyed child that the target still
	// wants: it must be detached and reattached, not destroyed.
	roundTrip(t,
		`<div><section><span id="keep">K</span></section><p>tail</p></div>`,
		`<div><p>tail</p><span id="keep">K</span></div>`)
}

func TestDiffReplaceIncompatibleElement(t *testing.T) {
	patches := roundTrip(t, `<div><b>x</b></div>`, `<div><i>x</i></div>`)
	var sawReplace bool
	for _, p := range patches {
		if p.Kind == PatchReplace {
			sawReplace = true
		}
	}
	if !sawReplace {
		t.Errorf("patches = %v, want a Replace", patchKinds(patches))
	}
}

func TestDiffSiblingInsertInMiddle(t *testing.T) {
	roundTrip(t,
		`<ul><li id="a">A</li><li id="c">C</li></ul>`,
		`<ul><li id="a">A</li><li id="b">B</li><li id="c">C</li></ul>`)
}

func TestDiffSiblingRemoveInMiddle(t *testing.T) {
	roundTrip(t,
		`<ul><li id="a">A</li><li id="b">B</li><li id="c">C</li></ul>`,
		`<ul><li id="a">A</li><li id="c">C</li></ul>`)
}

func TestDiffDeeperStructures(t *testing.T) {
	roundTrip(t,
		`<main><header><h1>t</h1></header><section><article><p>one</p></article></section></main>`,
		`<main><header><h1>t2</h1></header><section><article><p>one</p><p>two</p></article><aside>x</aside></section></main>`)
}

func TestTrackedDocumentMergeEmitsChanges(t *testing.T) {
	tracked, err := ParseFragmentJSON([]byte(`{
		"0": "cooling",
		"1": "07:15:03 PM",
		"s": ["<div class=\"bar\"><b>", "</b><span>", "</span></div>"]
	}`))
	if err != nil {
		t.Fatalf("ParseFragmentJSON: %v", err)
	}

	var changes []dom.ChangeType
	handler := changeRecorder{changes: &changes}
	if err := tracked.MergeFragmentJSON([]byte(`{"1": "07:15:04 PM"}`), handler); err != nil {
		t.Fatalf("MergeFragmentJSON: %v", err)
	}
	if len(changes) == 0 {
		t.Fatal("no change notifications emitted")
	}
	want := `<div class="bar"><b>cooling</b><span>07:15:04 PM</span></div>`
	if got := tracked.Doc.RenderCompact(); got != want {
		t.Errorf("document = %q, want %q", got, want)
	}
}

type changeRecorder struct {
	changes *[]dom.ChangeType
}

func (r changeRecorder) HandleChange(change dom.ChangeType, node dom.NodeRef, data dom.NodeData, parent dom.NodeRef) {
	*r.changes = append(*r.changes, change)
}
