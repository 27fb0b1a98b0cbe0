package analysis

import (
	"encoding/json"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/hydrogem/pool-dashboard/services/api/models"
	"github.com/hydrogem/pool-dashboard/services/api/weather"
)

// WeatherSamples is how many trailing hourly samples per metric go into the prompt.
const WeatherSamples = 6

var promptTemplate = template.Must(template.New("prompt").Parse(`
You are a pool water quality analyst. Analyze the device samples and local weather to explain likely water status and actions.

Context:
- Device = HydroGem (values are timestamped ISO, Berlin time).
- pH ideal band: 7.2–7.8 (target ~7.4)
- Free chlorine typical: 1–3 ppm for pools (lower for spas if sensitive users)
- Temperature impacts chlorine consumption; sun (UV) + heat degrade chlorine faster.
- Provide concise, actionable advice. Avoid medical claims.

Inputs:
- Analysis window: last {{.Hours}}h (now: {{.Now}})
- Latest row (for “current status”): {{.Latest}}
- Timeseries rows (oldest→newest, may be empty):
{{.Rows}}

- Weather (Open-Meteo subset):
{{.Weather}}

Output:
- 1) Current status (bullet points): pH, chlorine, temp, battery.
- 2) Trends in the last {{.Hours}}h (mention direction + rough magnitude).
- 3) Weather effects (UV/heat/rain) on chlorine/pH and likely near-term impact.
- 4) Clear actions (max 4 bullets): e.g., “add X ppm chlorine,” “adjust pH up/down,” “retest in X h,” “cover recommended.”
- 5) Safety reminders: brief, generic.
Keep it under 180 words.
`))

// PromptInput is everything the prompt embeds.
type PromptInput struct {
	Hours   float64
	Now     time.Time
	Latest  *models.Reading
	Rows    []models.Reading
	Weather weather.Summary
}

// BuildPrompt renders the analyst prompt.
func BuildPrompt(in PromptInput) (string, error) {
	latest := "none"
	if in.Latest != nil {
		b, err := json.Marshal(in.Latest)
		if err != nil {
			return "", err
		}
		latest = string(b)
	}

	rows := in.Rows
	if rows == nil {
		rows = []models.Reading{}
	}
	rowsJSON, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}

	weatherJSON, err := json.MarshalIndent(in.Weather, "", "  ")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	err = promptTemplate.Execute(&sb, map[string]string{
		"Hours":   strconv.FormatFloat(in.Hours, 'f', -1, 64),
		"Now":     in.Now.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		"Latest":  latest,
		"Rows":    string(rowsJSON),
		"Weather": string(weatherJSON),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(sb.String()), nil
}
