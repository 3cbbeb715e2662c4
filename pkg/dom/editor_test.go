package dom

import "testing"

func TestBuilderConstructsTree(t *testing.T) {
	b := Build()
	ul := b.Append(ElementData("ul"))
	b.SetInsertionPoint(ul)
	b.SetAttribute(NewAttributeName("id"), ptr("list"))
	b.Append(LeafData("one"))
	b.Append(LeafData("two"))
	doc := b.Finish()

	if got := doc.RenderCompact(); got != `<ul id="list">onetwo</ul>` {
		t.Errorf("built document = %q", got)
	}
	if _, ok := doc.GetByID("list"); !ok {
		t.Error("builder did not register the id attribute")
	}
}

func TestEditorGuardRestoresInsertionPoint(t *testing.T) {
	doc, err := Parse(`<div><span>a</span><span>b</span></div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ed := doc.Edit()
	div, _ := doc.Select(Tag("div")).First()
	ed.SetInsertionPoint(div)

	restore := ed.Guard()
	ed.ToChild(1)
	if ed.InsertionPoint() == div {
		t.Fatal("ToChild did not move")
	}
	restore()
	if ed.InsertionPoint() != div {
		t.Error("guard did not restore the insertion point")
	}
}

func TestEditorCursorMoves(t *testing.T) {
	doc, err := Parse(`<div><i>x</i><b>y</b><u>z</u></div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ed := doc.Edit()
	div, _ := doc.Select(Tag("div")).First()
	ed.SetInsertionPoint(div)

	ed.ToChild(0)
	if tagName(doc, ed.InsertionPoint()) != "i" {
		t.Errorf("ToChild(0) at %s", tagName(doc, ed.InsertionPoint()))
	}
	ed.ToSibling(2)
	if tagName(doc, ed.InsertionPoint()) != "u" {
		t.Errorf("ToSibling(2) at %s", tagName(doc, ed.InsertionPoint()))
	}
	ed.ToSiblingReverse(2)
	if tagName(doc, ed.InsertionPoint()) != "i" {
		t.Errorf("ToSiblingReverse(2) at %s", tagName(doc, ed.InsertionPoint()))
	}
	ed.ToParent()
	ed.ToChildReverse(0)
	if tagName(doc, ed.InsertionPoint()) != "u" {
		t.Errorf("ToChildReverse(0) at %s", tagName(doc, ed.InsertionPoint()))
	}
}

func TestEditorReplaceDataKeepsChildren(t *testing.T) {
	doc, err := Parse(`<div><span id="s"><i>inner</i></span></div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	ed := doc.Edit()
	span, _ := doc.GetByID("s")
	ed.ReplaceData(span, ElementData("section"))

	if got := len(doc.Children(span)); got != 1 {
		t.Errorf("children after replace = %d", got)
	}
	if tagName(doc, span) != "section" {
		t.Errorf("tag after replace = %s", tagName(doc, span))
	}
}

func ptr(s string) *string { return &s }
