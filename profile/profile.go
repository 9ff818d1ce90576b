// Package profile generates randomized device profiles used to vary the
// browser fingerprint between runs.
package profile

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
)

var userAgents = []string{
	// Chrome on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/129.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 11.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36",
	// Chrome on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_7_1) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	// Chrome on Linux
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Ubuntu; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	// Edge on Windows
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0",
	"Mozilla/5.0 (Windows NT 11.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
	// Edge on macOS
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36 Edg/131.0.0.0",
}

var screenResolutions = [][2]int{
	{1920, 1080}, {1366, 768}, {1536, 864}, {1440, 900}, {1280, 720},
	{1600, 900}, {2560, 1440}, {1920, 1200}, {1680, 1050}, {1280, 1024},
	{2560, 1600}, {3840, 2160}, {2048, 1152}, {1360, 768},
}

var timezones = []string{
	"America/New_York", "America/Los_Angeles", "America/Chicago", "America/Denver",
	"Europe/London", "Europe/Paris", "Europe/Berlin", "Europe/Rome", "Europe/Madrid",
	"Europe/Amsterdam", "Europe/Vienna", "Europe/Budapest", "Europe/Prague",
	"Asia/Tokyo", "Asia/Shanghai", "Asia/Hong_Kong", "Asia/Singapore",
	"Australia/Sydney", "Australia/Melbourne",
}

var languages = [][]string{
	{"en-US", "en"}, {"en-GB", "en"}, {"de-DE", "de", "en"}, {"fr-FR", "fr", "en"},
	{"es-ES", "es", "en"}, {"it-IT", "it", "en"}, {"pt-BR", "pt", "en"},
	{"nl-NL", "nl", "en"}, {"pl-PL", "pl", "en"}, {"hu-HU", "hu", "en"},
	{"ja-JP", "ja", "en"}, {"zh-CN", "zh", "en"}, {"ko-KR", "ko", "en"},
}

// Weighted towards common consumer hardware.
var (
	hardwareConcurrency = []int{4, 8, 8, 12, 16, 16}
	deviceMemory        = []int{4, 8, 8, 16, 16, 32}
	colorDepths         = []int{24, 24, 24, 30, 32}
	pixelRatios         = []float64{1.0, 1.0, 1.25, 1.5, 2.0}
)

// Device describes one synthetic device identity.
type Device struct {
	UserAgent           string
	Width               int
	Height              int
	Timezone            string
	Languages           []string
	Platform            string
	HardwareConcurrency int
	DeviceMemory        int
	ColorDepth          int
	PixelRatio          float64
}

// Random picks a fresh device identity. Every session gets its own so
// consecutive runs do not share a fingerprint.
func Random() Device {
	ua := userAgents[rand.Intn(len(userAgents))]
	res := screenResolutions[rand.Intn(len(screenResolutions))]

	d := Device{
		UserAgent:           ua,
		Width:               res[0],
		Height:              res[1],
		Timezone:            timezones[rand.Intn(len(timezones))],
		Languages:           languages[rand.Intn(len(languages))],
		HardwareConcurrency: hardwareConcurrency[rand.Intn(len(hardwareConcurrency))],
		DeviceMemory:        deviceMemory[rand.Intn(len(deviceMemory))],
		ColorDepth:          colorDepths[rand.Intn(len(colorDepths))],
		PixelRatio:          pixelRatios[rand.Intn(len(pixelRatios))],
	}

	switch {
	case strings.Contains(ua, "Windows"):
		d.Platform = "Win32"
	case strings.Contains(ua, "Macintosh"):
		d.Platform = "MacIntel"
	default:
		d.Platform = "Linux x86_64"
	}
	return d
}

// StealthScript renders the fingerprint override script injected before any
// page script runs. It masks navigator.webdriver and pins the spoofed
// hardware values to this device.
func (d Device) StealthScript() string {
	langs, _ := json.Marshal(d.Languages)

	var b strings.Builder
	fmt.Fprintf(&b, `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', {
    get: () => [
        { name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
        { name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', description: '' },
        { name: 'Native Client', filename: 'internal-nacl-plugin', description: '' }
    ]
});
Object.defineProperty(navigator, 'languages', { get: () => %s });
Object.defineProperty(navigator, 'platform', { get: () => '%s' });
window.chrome = { runtime: {}, loadTimes: function() {}, csi: function() {}, app: {} };
Object.defineProperty(navigator, 'permissions', {
    get: () => ({ query: () => Promise.resolve({ state: 'granted' }) })
});
Object.defineProperty(navigator, 'hardwareConcurrency', { get: () => %d });
Object.defineProperty(navigator, 'deviceMemory', { get: () => %d });
Object.defineProperty(navigator, 'maxTouchPoints', { get: () => 0 });
Object.defineProperty(screen, 'width', { get: () => %d });
Object.defineProperty(screen, 'height', { get: () => %d });
Object.defineProperty(screen, 'availWidth', { get: () => %d });
Object.defineProperty(screen, 'availHeight', { get: () => %d });
Object.defineProperty(screen, 'colorDepth', { get: () => %d });
Object.defineProperty(screen, 'pixelDepth', { get: () => %d });
Object.defineProperty(window, 'devicePixelRatio', { get: () => %v });
`,
		langs, d.Platform,
		d.HardwareConcurrency, d.DeviceMemory,
		d.Width, d.Height, d.Width, d.Height-40,
		d.ColorDepth, d.ColorDepth, d.PixelRatio)

	b.WriteString(`
const originalToDataURL = HTMLCanvasElement.prototype.toDataURL;
HTMLCanvasElement.prototype.toDataURL = function() {
    const context = this.getContext('2d');
    if (context) {
        const imageData = context.getImageData(0, 0, this.width, this.height);
        for (let i = 0; i < imageData.data.length; i += 4) {
            imageData.data[i] += Math.random() < 0.1 ? Math.floor(Math.random() * 2) - 1 : 0;
        }
        context.putImageData(imageData, 0, 0);
    }
    return originalToDataURL.apply(this, arguments);
};
const getParameter = WebGLRenderingContext.prototype.getParameter;
WebGLRenderingContext.prototype.getParameter = function(parameter) {
    if (parameter === 37445) { return 'Intel Inc.'; }
    if (parameter === 37446) { return 'Intel Iris OpenGL Engine'; }
    return getParameter.apply(this, arguments);
};
`)
	return b.String()
}
