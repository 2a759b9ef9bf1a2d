package agent

import "testing"

const dmidecodeSample = `# dmidecode 3.3
Handle 0x0040, DMI type 17, 40 bytes
Memory Device
	Size: 16 GB
	Locator: DIMM_A1
	Type: DDR4
	Speed: 3200 MT/s
	Manufacturer: Micron

Handle 0x0041, DMI type 17, 40 bytes
Memory Device
	Size: No Module Installed
	Locator: DIMM_A2
	Type: Unknown
	Manufacturer: Not Specified

Handle 0x0042, DMI type 17, 40 bytes
Memory Device
	Size: 8192 MB
	Locator: DIMM_B1
	Type: DDR4
	Speed: 2666 MT/s
	Manufacturer: Unknown
`

func TestParseDmidecodeMemory(t *testing.T) {
	modules := parseDmidecodeMemory(dmidecodeSample)
	if len(modules) != 2 {
		t.Fatalf("expected 2 populated modules, got %d", len(modules))
	}

	first := modules[0]
	if first.Size != 16<<30 {
		t.Errorf("expected 16 GiB, got %d", first.Size)
	}
	if first.Slot != "DIMM_A1" || first.MemType != "DDR4" || first.Speed != 3200 || first.Manufacturer != "Micron" {
		t.Errorf("unexpected module fields: %+v", first)
	}

	second := modules[1]
	if second.Size != 8192<<20 {
		t.Errorf("expected 8192 MiB, got %d", second.Size)
	}
	if second.Manufacturer != "" {
		t.Errorf("Unknown manufacturer should stay empty, got %q", second.Manufacturer)
	}
}
