package schema

import (
	"fmt"
	"strings"
)

// Registry exposes the declared sections in display order and resolves fields
// by flat key or dotted path. Contents are compiled-in constants.
type Registry struct {
	sections []*Section
	byName   map[string]*Section
	flat     map[string]string // dotted path -> flat key
	path     map[string]string // flat key -> dotted path
}

func f64(v float64) *float64 { return &v }

// Default returns the registry for the retina-node configuration surface.
func Default() *Registry {
	return defaultRegistry
}

var defaultRegistry = mustBuild([]*Section{
	{
		Name:  "capture",
		Title: "Capture Settings",
		Fields: []Field{
			{Name: "fs", Path: []string{"fs"}, Type: Int, Title: "Sample Rate", Description: "Hz"},
			{Name: "fc", Path: []string{"fc"}, Type: Int, Title: "Center Frequency", Description: "Hz"},
			{Name: "device_type", Path: []string{"device", "type"}, Type: String, Title: "Device Type", ReadOnly: true, Group: "Device Settings"},
			{Name: "device_agcSetPoint", Path: []string{"device", "agcSetPoint"}, Type: Int, Max: f64(0), Title: "AGC Set Point", Description: "dBFS", Group: "Device Settings"},
			{Name: "device_gainReduction", Path: []string{"device", "gainReduction"}, Type: Int, Min: f64(20), Max: f64(59), Title: "Gain Reduction", Description: "20-59 dB", Group: "Device Settings"},
			{Name: "device_lnaState", Path: []string{"device", "lnaState"}, Type: Int, Min: f64(1), Max: f64(9), Title: "LNA State", Description: "1-9", Group: "Device Settings"},
			{Name: "device_dabNotch", Path: []string{"device", "dabNotch"}, Type: Bool, Title: "DAB Notch Filter", Group: "Device Settings"},
			{Name: "device_rfNotch", Path: []string{"device", "rfNotch"}, Type: Bool, Title: "RF Notch Filter", Group: "Device Settings"},
			{Name: "device_bandwidthNumber", Path: []string{"device", "bandwidthNumber"}, Type: Int, Title: "Bandwidth Number", Group: "Device Settings"},
		},
	},
	{
		Name:  "location",
		Title: "Location Settings",
		Fields: []Field{
			{Name: "rx_latitude", Path: []string{"rx", "latitude"}, Type: Float, Min: f64(-90), Max: f64(90), Title: "Latitude", Description: "degrees", Group: "Receiver"},
			{Name: "rx_longitude", Path: []string{"rx", "longitude"}, Type: Float, Min: f64(-180), Max: f64(180), Title: "Longitude", Description: "degrees", Group: "Receiver"},
			{Name: "rx_altitude", Path: []string{"rx", "altitude"}, Type: Float, Title: "Altitude", Description: "meters", Group: "Receiver"},
			{Name: "rx_name", Path: []string{"rx", "name"}, Type: String, Title: "Name", Group: "Receiver"},
			{Name: "tx_latitude", Path: []string{"tx", "latitude"}, Type: Float, Min: f64(-90), Max: f64(90), Title: "Latitude", Description: "degrees", Group: "Transmitter"},
			{Name: "tx_longitude", Path: []string{"tx", "longitude"}, Type: Float, Min: f64(-180), Max: f64(180), Title: "Longitude", Description: "degrees", Group: "Transmitter"},
			{Name: "tx_altitude", Path: []string{"tx", "altitude"}, Type: Float, Title: "Altitude", Description: "meters", Group: "Transmitter"},
			{Name: "tx_name", Path: []string{"tx", "name"}, Type: String, Title: "Name", Group: "Transmitter"},
		},
	},
	{
		Name:  "truth",
		Title: "ADS-B Truth",
		Fields: []Field{
			{Name: "adsb_enabled", Path: []string{"adsb", "enabled"}, Type: Bool, Title: "Enabled", Group: "ADS-B"},
			{Name: "adsb_tar1090", Path: []string{"adsb", "tar1090"}, Type: String, Title: "tar1090 Server", Group: "ADS-B"},
			{Name: "adsb_adsb2dd", Path: []string{"adsb", "adsb2dd"}, Type: String, Title: "adsb2dd Endpoint", Group: "ADS-B"},
			{Name: "adsb_delay_tolerance", Path: []string{"adsb", "delay_tolerance"}, Type: Float, ExclusiveMin: f64(0), Title: "Delay Tolerance", Description: "seconds", Group: "ADS-B"},
			{Name: "adsb_doppler_tolerance", Path: []string{"adsb", "doppler_tolerance"}, Type: Float, ExclusiveMin: f64(0), Title: "Doppler Tolerance", Description: "Hz", Group: "ADS-B"},
		},
	},
	{
		Name:  "tar1090",
		Title: "tar1090",
		Fields: []Field{
			{Name: "adsb_source_host", Type: String, Title: "ADS-B Source Host", Composite: "adsb_source", Part: 0},
			{Name: "adsb_source_port", Type: Int, Min: f64(1), Max: f64(65535), Title: "ADS-B Source Port", Composite: "adsb_source", Part: 1},
			{Name: "adsb_source_protocol", Type: String, Title: "ADS-B Source Protocol", Composite: "adsb_source", Part: 2},
			{Name: "adsblol_fallback", Path: []string{"adsblol_fallback"}, Type: Bool, Title: "adsb.lol Fallback"},
			{Name: "adsblol_radius", Path: []string{"adsblol_radius"}, Type: Int, Min: f64(1), Max: f64(500), Title: "adsb.lol Radius", Description: "nm"},
		},
		Composites: []Composite{
			{Path: "adsb_source", Parts: []string{"adsb_source_host", "adsb_source_port", "adsb_source_protocol"}, Sep: ","},
		},
	},
})

// Sections returns the declared sections in display order.
func (r *Registry) Sections() []*Section {
	return r.sections
}

// Section returns the section with the given name.
func (r *Registry) Section(name string) (*Section, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// FieldByFlatKey resolves a fully qualified form key ("location.rx_latitude")
// to its section and field. Section names never contain dots, so the first
// dot separates the section from the flat field name.
func (r *Registry) FieldByFlatKey(key string) (*Section, *Field, bool) {
	i := strings.IndexByte(key, '.')
	if i < 0 {
		return nil, nil, false
	}
	s, ok := r.byName[key[:i]]
	if !ok {
		return nil, nil, false
	}
	f, ok := s.Field(key[i+1:])
	if !ok {
		return nil, nil, false
	}
	return s, f, true
}

// PathToFlat maps a fully qualified dotted path ("capture.device.gainReduction")
// to its form key ("capture.device_gainReduction"). The mapping is total and
// invertible over declared fields.
func (r *Registry) PathToFlat(path string) (string, bool) {
	k, ok := r.flat[path]
	return k, ok
}

// FlatToPath is the inverse of PathToFlat.
func (r *Registry) FlatToPath(key string) (string, bool) {
	p, ok := r.path[key]
	return p, ok
}

func mustBuild(sections []*Section) *Registry {
	r := &Registry{
		sections: sections,
		byName:   make(map[string]*Section, len(sections)),
		flat:     make(map[string]string),
		path:     make(map[string]string),
	}
	for _, s := range sections {
		if _, dup := r.byName[s.Name]; dup {
			panic(fmt.Sprintf("schema: duplicate section %q", s.Name))
		}
		r.byName[s.Name] = s
		s.byName = make(map[string]*Field, len(s.Fields))
		for i := range s.Fields {
			f := &s.Fields[i]
			if _, dup := s.byName[f.Name]; dup {
				panic(fmt.Sprintf("schema: duplicate field %s.%s", s.Name, f.Name))
			}
			s.byName[f.Name] = f

			flat := s.FlatKey(f)
			dotted := s.PathKey(f)
			if _, dup := r.flat[dotted]; dup {
				panic(fmt.Sprintf("schema: duplicate path %q", dotted))
			}
			r.flat[dotted] = flat
			r.path[flat] = dotted
		}
		for _, c := range s.Composites {
			for _, part := range c.Parts {
				if _, ok := s.byName[part]; !ok {
					panic(fmt.Sprintf("schema: composite %s.%s references unknown field %q", s.Name, c.Path, part))
				}
			}
		}
	}
	return r
}
