package subtitle

import "testing"

func TestPaths(t *testing.T) {
	cases := []struct {
		audio string
		srt   string
		txt   string
	}{
		{"talk.wav", "talk.srt", "talk.txt"},
		{"/tmp/rec/Mon_Jan__2_15:04:05_2006.wav", "/tmp/rec/Mon_Jan__2_15:04:05_2006.srt", "/tmp/rec/Mon_Jan__2_15:04:05_2006.txt"},
		{"noext", "noext.srt", "noext.txt"},
		{"dir.v2/take", "dir.v2/take.srt", "dir.v2/take.txt"},
		{"meeting.final.wav", "meeting.final.srt", "meeting.final.txt"},
	}
	for _, c := range cases {
		f := Paths(c.audio)
		if f.Audio != c.audio || f.SRT != c.srt || f.TXT != c.txt {
			t.Fatalf("Paths(%q) = %+v", c.audio, f)
		}
		if f.For(SRT) != c.srt {
			t.Fatalf("For(SRT) = %q", f.For(SRT))
		}
	}
}

func TestFilesAll(t *testing.T) {
	all := Paths("a.wav").All()
	want := []string{"a.wav", "a.txt", "a.srt", "a.tsv", "a.vtt"}
	if len(all) != len(want) {
		t.Fatalf("all = %v", all)
	}
	for i := range want {
		if all[i] != want[i] {
			t.Fatalf("all[%d] = %q want %q", i, all[i], want[i])
		}
	}
}
