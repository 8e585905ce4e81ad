package form

import (
	"testing"

	"github.com/offworldlabs/retina-gui/internal/schema"
)

func mergedFixture() map[string]any {
	return map[string]any{
		"capture": map[string]any{
			"fs": 2000000,
			"device": map[string]any{
				"type":          "RspDuo",
				"gainReduction": 40,
				"dabNotch":      true,
			},
		},
		"tar1090": map[string]any{
			"adsb_source":      "10.0.0.1,30005,raw_in",
			"adsblol_fallback": false,
		},
	}
}

func findField(t *testing.T, fields []FieldDisplay, key string) *FieldDisplay {
	t.Helper()
	for i := range fields {
		if fields[i].Key == key {
			return &fields[i]
		}
	}
	t.Fatalf("field %q not rendered", key)
	return nil
}

func TestSectionFieldsValuesFromMerged(t *testing.T) {
	sec, _ := schema.Default().Section("capture")
	fields := SectionFields(sec, mergedFixture())

	if fd := findField(t, fields, "capture.fs"); fd.Value != 2000000 {
		t.Errorf("fs = %#v", fd.Value)
	}
	if fd := findField(t, fields, "capture.device_gainReduction"); fd.Value != 40 {
		t.Errorf("gainReduction = %#v", fd.Value)
	}
	if fd := findField(t, fields, "capture.device_type"); !fd.ReadOnly || fd.Value != "RspDuo" {
		t.Errorf("device_type = %#v readonly=%v", fd.Value, fd.ReadOnly)
	}
	// Absent from merged: rendered with no value.
	if fd := findField(t, fields, "capture.fc"); fd.Value != nil {
		t.Errorf("fc = %#v", fd.Value)
	}
}

func TestSectionFieldsGroupHeaders(t *testing.T) {
	sec, _ := schema.Default().Section("location")
	fields := SectionFields(sec, map[string]any{})

	var headers []string
	for _, fd := range fields {
		if fd.Group {
			headers = append(headers, fd.Title)
		}
	}
	if len(headers) != 2 || headers[0] != "Receiver" || headers[1] != "Transmitter" {
		t.Fatalf("headers = %v", headers)
	}
}

func TestSectionFieldsSplitsComposite(t *testing.T) {
	sec, _ := schema.Default().Section("tar1090")
	fields := SectionFields(sec, mergedFixture())

	if fd := findField(t, fields, "tar1090.adsb_source_host"); fd.Value != "10.0.0.1" {
		t.Errorf("host = %#v", fd.Value)
	}
	if fd := findField(t, fields, "tar1090.adsb_source_port"); fd.Value != "30005" {
		t.Errorf("port = %#v", fd.Value)
	}
	if fd := findField(t, fields, "tar1090.adsb_source_protocol"); fd.Value != "raw_in" {
		t.Errorf("protocol = %#v", fd.Value)
	}
}

func TestSectionFieldsFloatStep(t *testing.T) {
	sec, _ := schema.Default().Section("location")
	fields := SectionFields(sec, map[string]any{})
	if fd := findField(t, fields, "location.rx_latitude"); fd.Step != "any" {
		t.Errorf("step = %q", fd.Step)
	}
	sec, _ = schema.Default().Section("capture")
	fields = SectionFields(sec, map[string]any{})
	if fd := findField(t, fields, "capture.fs"); fd.Step != "" {
		t.Errorf("int step = %q", fd.Step)
	}
}

func TestApplyRawOverlaysSubmission(t *testing.T) {
	sections := Sections(schema.Default(), mergedFixture())
	raw := map[string]string{
		"capture.device_gainReduction": "77",
		"capture.device_rfNotch":       "on",
	}
	errs := ErrorMap{"capture.device_gainReduction": "must be less than or equal to 59"}
	ApplyRaw(sections, raw, errs)

	var capture *SectionDisplay
	for i := range sections {
		if sections[i].Name == "capture" {
			capture = &sections[i]
		}
	}

	gr := findField(t, capture.Fields, "capture.device_gainReduction")
	if gr.Value != "77" || gr.Error != "must be less than or equal to 59" {
		t.Fatalf("gainReduction = %#v err=%q", gr.Value, gr.Error)
	}
	// Checked box present in raw; unchecked box of a submitted section
	// flips to false even though the merged view says true.
	if fd := findField(t, capture.Fields, "capture.device_rfNotch"); fd.Value != true {
		t.Errorf("rfNotch = %#v", fd.Value)
	}
	if fd := findField(t, capture.Fields, "capture.device_dabNotch"); fd.Value != false {
		t.Errorf("dabNotch = %#v", fd.Value)
	}
}

func TestApplyRawLeavesUnsubmittedSections(t *testing.T) {
	sections := Sections(schema.Default(), mergedFixture())
	ApplyRaw(sections, map[string]string{"tar1090.adsblol_radius": "100"}, nil)

	for i := range sections {
		if sections[i].Name != "capture" {
			continue
		}
		// No capture key was submitted, so its unchecked boxes keep the
		// merged value instead of flipping to false.
		if fd := findField(t, sections[i].Fields, "capture.device_dabNotch"); fd.Value != true {
			t.Errorf("dabNotch = %#v", fd.Value)
		}
	}
}
