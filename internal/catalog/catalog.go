package catalog

// Sample describes one previewable entry in the sound pack.
type Sample struct {
	Filename string `json:"filename"`
	LabelEn  string `json:"labelEn"`
	LabelZh  string `json:"labelZh"`
}

// Samples is the fixed catalog of previewable files. It doubles as the
// allow-list for preview token issuance: filenames here never contain the
// token separator, which keeps issued tokens unambiguous.
var Samples = []Sample{
	{Filename: "labubu1.mp3", LabelEn: "Labubu Chirp", LabelZh: "Labubu 锁车音 · 版本 1"},
	{Filename: "labubu2.mp3", LabelEn: "Labubu Pulse", LabelZh: "Labubu 锁车音 · 版本 2"},
	{Filename: "labubu3.mp3", LabelEn: "Labubu Wave", LabelZh: "Labubu 锁车音 · 版本 3"},
	{Filename: "windows.mp3", LabelEn: "Windows Chime", LabelZh: "Windows 系统提示音"},
	{Filename: "winopen.mp3", LabelEn: "Windows Start", LabelZh: "Windows 开机音"},
	{Filename: "jiming.mp3", LabelEn: "Morning Rooster", LabelZh: "鸡鸣提示音"},
}

// Filenames returns the allow-listed sample names in catalog order.
func Filenames() []string {
	names := make([]string, len(Samples))
	for i, s := range Samples {
		names[i] = s.Filename
	}
	return names
}

// PackFilename is the attachment and disposition name for the full pack.
const PackFilename = "soundpack.zip"
