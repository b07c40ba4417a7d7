// Domain-aware summarizer and text normalization, grounded on
// core/smart_pipeline_engine.py's _extract_weather_info,
// _format_search_results_summary, _is_generic_message, and _clean_text —
// translated from Python's dynamic dict walking to explicit Go shapes, with
// the original's exact regexes and closed sets preserved.
package executor

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

var (
	controlCharsPattern  = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	whitespaceRunPattern = regexp.MustCompile(`\s+`)
	htmlTagPattern       = regexp.MustCompile(`<[^>]+>`)
	// keepCharsetPattern matches characters OUTSIDE {word, whitespace, CJK
	// unified ideographs, basic punctuation} for removal.
	keepCharsetPattern = regexp.MustCompile(`[^\w\s\x{4e00}-\x{9fff},.!?;:()、。，！？；：（）\-_]`)
)

// CleanText normalizes a string per §4.6: strip control characters,
// collapse whitespace, remove HTML tags, remove characters outside the
// word/whitespace/CJK/basic-punctuation charset.
func CleanText(s string) string {
	s = controlCharsPattern.ReplaceAllString(s, "")
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = keepCharsetPattern.ReplaceAllString(s, "")
	s = whitespaceRunPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var genericMessagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)search succeeded.*found.*results?`),
	regexp.MustCompile(`(?i).*task complete.*`),
	regexp.MustCompile(`(?i).*success.*`),
	regexp.MustCompile(`(?i)task.*complete`),
}

// IsGenericMessage reports whether s matches one of the fixed generic
// patterns (§4.5's "generic messages match a fixed pattern set").
func IsGenericMessage(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return true
	}
	for _, p := range genericMessagePatterns {
		if p.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// weatherIntentKeywords flags a query as weather-related.
var weatherIntentKeywords = []string{"weather", "forecast", "temperature"}

func hasWeatherIntent(query string) bool {
	lower := strings.ToLower(query)
	for _, kw := range weatherIntentKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

var (
	// tempRangePattern: NN[~|-|至]NN with optional degree marker, e.g. "18~25°C".
	tempRangePattern = regexp.MustCompile(`(\d{1,2})\s*(?:°|℃)?\s*(?:~|-|至)\s*(\d{1,2})\s*(?:°|℃)?\s*[Cc]?`)
	// tempSinglePattern: a single NN with optional degree marker.
	tempSinglePattern = regexp.MustCompile(`(\d{1,2})\s*(?:°|℃)?\s*[Cc]?`)
	// windPattern: a compass direction optionally followed by a level.
	windPattern = regexp.MustCompile(`(?i)(north|south|east|west|northeast|northwest|southeast|southwest)\s*wind\s*(\d+\s*level)?`)
)

var skyConditions = []string{"sunny", "clear", "cloudy", "overcast", "light rain", "moderate rain", "heavy rain", "rainstorm", "snow", "thunderstorm", "haze", "fog"}

var airQualityLevels = []string{"excellent", "good", "light pollution", "moderate pollution", "heavy pollution", "severe pollution"}

// WeatherSummary is the structured extraction result for a weather-intent
// query (§4.6, Scenario 6).
type WeatherSummary struct {
	Location    string
	Temperature string
	Sky         string
	Wind        string
	AirQuality  string
}

// Lines renders the five fixed emoji lines in the order Scenario 6
// expects.
func (w WeatherSummary) Lines() []string {
	var out []string
	if w.Location != "" {
		out = append(out, "📍 "+w.Location)
	}
	if w.Temperature != "" {
		out = append(out, "🌡️ "+w.Temperature)
	}
	if w.Sky != "" {
		out = append(out, "☁️ "+w.Sky)
	}
	if w.Wind != "" {
		out = append(out, "💨 "+w.Wind)
	}
	if w.AirQuality != "" {
		out = append(out, "🌬️ "+w.AirQuality)
	}
	return out
}

// ExtractWeatherInfo extracts location/temperature/sky/wind/air-quality
// from query (minus the intent keyword) and text (the candidate result's
// title/description).
func ExtractWeatherInfo(query, text string) WeatherSummary {
	location := query
	lower := strings.ToLower(query)
	for _, kw := range weatherIntentKeywords {
		if idx := strings.Index(lower, kw); idx >= 0 {
			location = strings.TrimSpace(query[:idx] + query[idx+len(kw):])
			break
		}
	}

	var w WeatherSummary
	w.Location = strings.TrimSpace(location)

	if m := tempRangePattern.FindStringSubmatch(text); m != nil {
		w.Temperature = fmt.Sprintf("%s°C~%s°C", m[1], m[2])
	} else if m := tempSinglePattern.FindStringSubmatch(text); m != nil {
		w.Temperature = fmt.Sprintf("%s°C", m[1])
	}

	lowerText := strings.ToLower(text)
	for _, sky := range skyConditions {
		if strings.Contains(lowerText, sky) {
			w.Sky = sky
			break
		}
	}

	if m := windPattern.FindStringSubmatch(text); m != nil {
		dir := strings.ToLower(m[1])
		level := strings.TrimSpace(m[2])
		if level != "" {
			w.Wind = fmt.Sprintf("%s wind %s", dir, level)
		} else {
			w.Wind = fmt.Sprintf("%s wind", dir)
		}
	}

	for _, aq := range airQualityLevels {
		if strings.Contains(lowerText, aq) {
			w.AirQuality = "air quality " + aq
			break
		}
	}

	return w
}

// FormatSearchDigest renders up to three items as an "index. title /
// description[:150]…" digest, appending a total count if provided
// (§4.6's non-weather branch).
func FormatSearchDigest(items []map[string]any, total int) string {
	var b strings.Builder
	b.WriteString("📋 Result summary:\n\n")
	n := len(items)
	if n > 3 {
		n = 3
	}
	for i := 0; i < n; i++ {
		title, _ := items[i]["title"].(string)
		desc, _ := items[i]["description"].(string)
		desc = truncate(desc, 150)
		fmt.Fprintf(&b, "%d. %s\n   %s\n", i+1, CleanText(title), CleanText(desc))
	}
	if total > 0 {
		fmt.Fprintf(&b, "\n📊 %d results total", total)
	}
	return strings.TrimRight(b.String(), "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
