package entity

import "testing"

func TestParseExtension(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Extension
	}{
		{"empty", "   ", Extension{}},
		{"card only", "Returns the count.", Extension{Card: "Returns the count."}},
		{
			"card and body",
			"Returns the count.\r\n\r\nThe count is cached.\n\nSee also `size`.",
			Extension{Card: "Returns the count.", Body: "The count is cached.\n\nSee also `size`."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseExtension(tt.text)
			if got != tt.want {
				t.Errorf("ParseExtension = %+v, want %+v", got, tt.want)
			}
			if got.IsEmpty() != (tt.want == Extension{}) {
				t.Errorf("IsEmpty = %v", got.IsEmpty())
			}
		})
	}
}

func TestEqualIntrinsic(t *testing.T) {
	a := &Intrinsic{Kind: KindStruct, Path: []string{"Deque"}}
	b := &Intrinsic{Kind: KindStruct, Path: []string{"Deque"}}
	c := &Intrinsic{Kind: KindStruct, Path: []string{"Deque", "count"}}

	if !EqualIntrinsic(a, b) {
		t.Error("equal intrinsics compared unequal")
	}
	if EqualIntrinsic(a, c) {
		t.Error("different paths compared equal")
	}
	if EqualIntrinsic(a, nil) || !EqualIntrinsic(nil, nil) {
		t.Error("nil handling is wrong")
	}
	if c.Name() != "count" || c.PathString() != "Deque.count" {
		t.Errorf("Name/PathString = %q %q", c.Name(), c.PathString())
	}
}

func TestEqualNullableValues(t *testing.T) {
	if !EqualExtension(&Extension{Card: "x"}, &Extension{Card: "x"}) {
		t.Error("EqualExtension")
	}
	if EqualModuleMetadata(&ModuleMetadata{Name: "A"}, nil) {
		t.Error("EqualModuleMetadata with nil")
	}
	if !EqualArticleMetadata(nil, nil) {
		t.Error("EqualArticleMetadata(nil, nil)")
	}
}
