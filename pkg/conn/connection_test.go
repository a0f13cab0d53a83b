package conn

import "testing"

func TestRebuildUsedChannels_Default(t *testing.T) {
	c := &Connection{ChannelMap: DefaultChannelMap}
	c.RebuildUsedChannels()

	if len(c.UsedChannels) != 37 {
		t.Fatalf("expected 37 used channels, got %d", len(c.UsedChannels))
	}
	for i, ch := range c.UsedChannels {
		if int(ch) != i {
			t.Fatalf("expected identity mapping at %d, got %d", i, ch)
		}
	}
}

func TestRebuildUsedChannels_Sparse(t *testing.T) {
	c := &Connection{ChannelMap: [5]byte{0x01, 0x00, 0x00, 0x00, 0x00}} // only channel 0
	c.RebuildUsedChannels()

	if len(c.UsedChannels) != 1 || c.UsedChannels[0] != 0 {
		t.Fatalf("expected only channel 0, got %v", c.UsedChannels)
	}
}

func TestRebuildUsedChannels_AllZeroFallsBackToFullRange(t *testing.T) {
	c := &Connection{ChannelMap: [5]byte{0x00, 0x00, 0x00, 0x00, 0x00}}
	c.RebuildUsedChannels()

	if len(c.UsedChannels) != 37 {
		t.Fatalf("expected fallback to all 37 channels (I2), got %d", len(c.UsedChannels))
	}
}

func TestNextChannel_CandidateInUsedSet(t *testing.T) {
	c := &Connection{ChannelMap: DefaultChannelMap, HopIncrement: 5, CurrentChannel: 0}
	c.RebuildUsedChannels()

	got := c.NextChannel()
	if got != 5 {
		t.Errorf("expected channel 5, got %d", got)
	}
	if c.EventCounter != 1 {
		t.Errorf("expected event counter 1, got %d", c.EventCounter)
	}

	got = c.NextChannel()
	if got != 10 {
		t.Errorf("expected channel 10 after second hop, got %d", got)
	}
	if c.EventCounter != 2 {
		t.Errorf("expected event counter 2, got %d", c.EventCounter)
	}
}

func TestNextChannel_CandidateNotInUsedSetIsRemapped(t *testing.T) {
	// Used channels: only {0, 1}. hop_increment=5, current=0 -> candidate=5,
	// which is not a member; remap via candidate % len(used) = 5 % 2 = 1.
	c := &Connection{ChannelMap: [5]byte{0x03, 0x00, 0x00, 0x00, 0x00}, HopIncrement: 5, CurrentChannel: 0}
	c.RebuildUsedChannels()

	got := c.NextChannel()
	if got != 1 {
		t.Errorf("expected remapped channel 1, got %d", got)
	}
}

func TestNextChannel_WrapsModulo37(t *testing.T) {
	c := &Connection{ChannelMap: DefaultChannelMap, HopIncrement: 16, CurrentChannel: 30}
	c.RebuildUsedChannels()

	got := c.NextChannel()
	if got != (30+16)%37 {
		t.Errorf("expected wrapped channel %d, got %d", (30+16)%37, got)
	}
}
