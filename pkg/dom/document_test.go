package dom

import (
	"strings"
	"testing"
)

func buildList(t *testing.T) *Document {
	t.Helper()
	doc, err := Parse(`<ul id="list"><li id="a">A</li><li id="b">B</li></ul>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return doc
}

func TestEmptyDocument(t *testing.T) {
	doc := Empty()
	if !doc.IsEmpty() {
		t.Error("Empty() document reports non-empty")
	}
	if doc.Get(doc.Root()).Kind != KindRoot {
		t.Error("root node is not KindRoot")
	}
	if _, ok := doc.Parent(doc.Root()); ok {
		t.Error("root node has a parent")
	}
}

func TestAppendAndDetach(t *testing.T) {
	doc := Empty()
	parent := doc.PushNode(ElementData("div"))
	doc.AppendChild(doc.Root(), parent)
	child := doc.PushNode(LeafData("hello"))
	doc.AppendChild(parent, child)

	if got, _ := doc.Parent(child); got != parent {
		t.Errorf("Parent(child) = %d, want %d", got, parent)
	}
	if got := doc.Children(parent); len(got) != 1 || got[0] != child {
		t.Errorf("Children(parent) = %v", got)
	}

	doc.Detach(child)
	if _, ok := doc.Parent(child); ok {
		t.Error("detached node still has a parent")
	}
	if got := doc.Children(parent); len(got) != 0 {
		t.Errorf("children after detach = %v", got)
	}
	// The subtree survives detach and can be re-attached.
	doc.PrependChild(parent, child)
	if got := doc.Children(parent); len(got) != 1 {
		t.Errorf("children after re-attach = %v", got)
	}
}

func TestAppendAttachedNodePanics(t *testing.T) {
	doc := Empty()
	node := doc.PushNode(ElementData("div"))
	doc.AppendChild(doc.Root(), node)

	defer func() {
		if recover() == nil {
			t.Error("appending an attached node did not panic")
		}
	}()
	doc.AppendChild(doc.Root(), node)
}

func TestInsertBeforeAfter(t *testing.T) {
	doc := Empty()
	parent := doc.PushNode(ElementData("ul"))
	doc.AppendChild(doc.Root(), parent)
	b := doc.PushNode(ElementData("li"))
	doc.AppendChild(parent, b)

	a := doc.PushNode(ElementData("li"))
	doc.InsertBefore(a, b)
	c := doc.PushNode(ElementData("li"))
	doc.InsertAfter(c, b)

	want := []NodeRef{a, b, c}
	got := doc.Children(parent)
	if len(got) != len(want) {
		t.Fatalf("children = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("children[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDeleteDropsSubtreeAndIDs(t *testing.T) {
	doc := buildList(t)
	list, ok := doc.GetByID("list")
	if !ok {
		t.Fatal("list id not registered")
	}
	if _, ok := doc.GetByID("a"); !ok {
		t.Fatal("a id not registered")
	}

	doc.Delete(list)
	if _, ok := doc.GetByID("list"); ok {
		t.Error("deleted node still in id index")
	}
	if _, ok := doc.GetByID("a"); ok {
		t.Error("deleted descendant still in id index")
	}
	if !doc.IsEmpty() {
		t.Error("document not empty after deleting the only subtree")
	}
}

func TestRegisterIDLastWins(t *testing.T) {
	doc := Empty()
	a := doc.PushNode(ElementData("div"))
	b := doc.PushNode(ElementData("div"))

	if _, had := doc.RegisterID(a, "x"); had {
		t.Error("fresh registration reported a previous binding")
	}
	prev, had := doc.RegisterID(b, "x")
	if !had || prev != a {
		t.Errorf("RegisterID returned (%d, %v), want (%d, true)", prev, had, a)
	}
	if got, _ := doc.GetByID("x"); got != b {
		t.Errorf("GetByID = %d, want %d", got, b)
	}
}

func TestSetAndReplaceAttributes(t *testing.T) {
	doc := Empty()
	node := doc.PushNode(ElementData("div"))
	doc.AppendChild(doc.Root(), node)

	v1 := "a"
	if !doc.SetAttribute(node, NewAttributeName("class"), &v1) {
		t.Fatal("SetAttribute on element returned false")
	}
	v2 := "b"
	doc.SetAttribute(node, NewAttributeName("class"), &v2)
	if attrs := doc.Attributes(node); len(attrs) != 1 || attrs[0].ValueString() != "b" {
		t.Errorf("attributes after replace = %v", attrs)
	}

	prev := doc.ReplaceAttributes(node, []Attribute{NewAttribute("id", "z")})
	if len(prev) != 1 || prev[0].Name.Local() != "class" {
		t.Errorf("ReplaceAttributes previous = %v", prev)
	}
	doc.RemoveAttribute(node, NewAttributeName("id"))
	if attrs := doc.Attributes(node); len(attrs) != 0 {
		t.Errorf("attributes after remove = %v", attrs)
	}

	leaf := doc.PushNode(LeafData("x"))
	if doc.SetAttribute(leaf, NewAttributeName("class"), &v1) {
		t.Error("SetAttribute on leaf returned true")
	}
}

func TestPrintSelfClosingAndPairs(t *testing.T) {
	doc, err := Parse(`<div class="x"><br/><span>hi</span></div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := doc.RenderCompact()
	want := `<div class="x"><br /><span>hi</span></div>`
	if out != want {
		t.Errorf("RenderCompact = %q, want %q", out, want)
	}
}

func TestPrintQuotesAttributeValues(t *testing.T) {
	doc := Empty()
	node := doc.PushNode(ElementData("a"))
	doc.AppendChild(doc.Root(), node)
	v := `say "hi"`
	doc.SetAttribute(node, NewAttributeName("title"), &v)

	out := doc.RenderCompact()
	want := `<a title="say \"hi\"" />`
	if out != want {
		t.Errorf("RenderCompact = %q, want %q", out, want)
	}
}

func TestPrettyPrintIndents(t *testing.T) {
	doc, err := Parse(`<div><span>hi</span></div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	out := doc.String()
	lines := strings.Split(out, "\n")
	if len(lines) != 5 {
		t.Fatalf("pretty output has %d lines: %q", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], printerIndent) {
		t.Errorf("nested element not indented: %q", lines[1])
	}
}
