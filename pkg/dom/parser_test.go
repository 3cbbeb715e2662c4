package dom

import "testing"

func TestParseSimpleTree(t *testing.T) {
	doc, err := Parse(`<div class="thermostat"><span>07:15:03 PM</span></div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	divs := doc.Select(Tag("div")).Collect()
	if len(divs) != 1 {
		t.Fatalf("found %d divs", len(divs))
	}
	div := doc.Get(divs[0])
	if got := div.Element.Attributes[0].ValueString(); got != "thermostat" {
		t.Errorf("class = %q", got)
	}
	span := doc.Children(divs[0])[0]
	leaf := doc.Children(span)[0]
	if got := doc.Get(leaf).Text; got != "07:15:03 PM" {
		t.Errorf("leaf text = %q", got)
	}
}

func TestParseVoidAndSelfClosing(t *testing.T) {
	doc, err := Parse(`<head><meta name="csrf-token" content="tok"><Style url="/a.styles"/></head>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	// meta is void: Style must be a sibling inside head, not a child of meta.
	head, _ := doc.Select(Tag("head")).First()
	if got := len(doc.Children(head)); got != 2 {
		t.Fatalf("head has %d children, want 2", got)
	}
}

func TestParseRegistersIDs(t *testing.T) {
	doc, err := Parse(`<div id="phx-main" data-phx-main="true"></div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := doc.GetByID("phx-main"); !ok {
		t.Error("id not registered during parse")
	}
}

func TestParseValuelessAttribute(t *testing.T) {
	doc, err := Parse(`<iframe hidden src="/phoenix/live_reload/frame"></iframe>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	frame, ok := doc.Select(Attr("hidden")).First()
	if !ok {
		t.Fatal("valueless attribute not matched")
	}
	attr, _ := doc.GetAttributeByName(frame, NewAttributeName("hidden"))
	if attr.Value != nil {
		t.Errorf("hidden attribute value = %v, want nil", *attr.Value)
	}
}

func TestParseDropsCommentsAndDoctype(t *testing.T) {
	doc, err := Parse("<!DOCTYPE html><!-- boot --><div>x</div>")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := len(doc.Children(doc.Root())); got != 1 {
		t.Errorf("root has %d children, want 1", got)
	}
}

func TestParseRawTextScript(t *testing.T) {
	doc, err := Parse(`<body><script>if (a < b) { x(); }</script><div>y</div></body>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	script, _ := doc.Select(Tag("script")).First()
	content := doc.Get(doc.Children(script)[0])
	if content.Text != "if (a < b) { x(); }" {
		t.Errorf("script content = %q", content.Text)
	}
	if got := doc.Select(Tag("div")).Collect(); len(got) != 1 {
		t.Errorf("div after script not parsed, matches = %d", len(got))
	}
}

func TestParseEntities(t *testing.T) {
	doc, err := Parse(`<div title="a &amp; b">x &lt; y</div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	div, _ := doc.Select(Tag("div")).First()
	attr, _ := doc.GetAttributeByName(div, NewAttributeName("title"))
	if attr.ValueString() != "a & b" {
		t.Errorf("title = %q", attr.ValueString())
	}
	if text := doc.Get(doc.Children(div)[0]).Text; text != "x < y" {
		t.Errorf("text = %q", text)
	}
}

func TestParseMismatchedEndTagIsTolerated(t *testing.T) {
	doc, err := Parse(`<div><span>x</em></span></div>`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := len(doc.Select(Tag("span")).Collect()); got != 1 {
		t.Errorf("span count = %d", got)
	}
}
