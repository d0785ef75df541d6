package render

import (
	"fmt"
	"sort"
	"strings"
)

const DefaultTheme = "boxed"

// inline CSS of the subtitle box per theme
var themes = map[string]string{
	"boxed": "font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; font-weight: 600; " +
		"font-size: 48px; line-height: 1.3; color: #FFFFFF; background: rgba(0,0,0,0.75); " +
		"padding: 18px 28px; border-radius: 24px; display: inline-block; " +
		"max-width: 80vw; word-break: break-word; box-shadow: 0 16px 32px rgba(0,0,0,0.35);",
	"plain": "font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; font-weight: 600; " +
		"font-size: 48px; line-height: 1.3; color: #FFFFFF; " +
		"text-shadow: 0 2px 8px rgba(0,0,0,0.85); display: inline-block; " +
		"max-width: 80vw; word-break: break-word;",
	"bold_yellow": "font-family: 'Montserrat', 'Arial Black', Arial, sans-serif; font-weight: 800; " +
		"font-size: 56px; line-height: 1.2; color: #FFD400; text-transform: uppercase; " +
		"-webkit-text-stroke: 2px #000000; text-shadow: 0 4px 0 #000000; display: inline-block; " +
		"max-width: 80vw; word-break: break-word;",
}

// style for theme, the default theme for unknown names
func ThemeStyle(theme string) string {
	if style, ok := themes[theme]; ok {
		return style
	}
	return themes[DefaultTheme]
}

func Themes() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ValidateTheme(theme string) error {
	if _, ok := themes[theme]; !ok {
		return fmt.Errorf("unknown subtitle theme %q (available: %s)", theme, strings.Join(Themes(), ", "))
	}
	return nil
}
