package capsule

import "strings"

// Category is the closed set of life-story themes.
type Category string

const (
	CategoryChildhood    Category = "childhood"
	CategoryWisdom       Category = "wisdom"
	CategoryFamily       Category = "family"
	CategoryFestival     Category = "festival"
	CategoryRecipe       Category = "recipe"
	CategoryLoveStory    Category = "love_story"
	CategoryLifeLesson   Category = "life_lesson"
	CategoryPrayer       Category = "prayer"
	CategoryTradition    Category = "tradition"
	CategoryAdventure    Category = "adventure"
	CategoryFunnyStory   Category = "funny_story"
	CategoryBedtimeStory Category = "bedtime_story"
	CategoryLetter       Category = "letter"
	CategoryOther        Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryChildhood, CategoryWisdom, CategoryFamily, CategoryFestival,
	CategoryRecipe, CategoryLoveStory, CategoryLifeLesson, CategoryPrayer,
	CategoryTradition, CategoryAdventure, CategoryFunnyStory,
	CategoryBedtimeStory, CategoryLetter, CategoryOther,
}

// Mood is the closed set of emotional tones.
type Mood string

const (
	MoodNostalgic   Mood = "nostalgic"
	MoodJoyful      Mood = "joyful"
	MoodReflective  Mood = "reflective"
	MoodFunny       Mood = "funny"
	MoodTender      Mood = "tender"
	MoodProud       Mood = "proud"
	MoodBittersweet Mood = "bittersweet"
	MoodHopeful     Mood = "hopeful"
	MoodPeaceful    Mood = "peaceful"
	MoodCelebratory Mood = "celebratory"
)

// Moods lists every mood.
var Moods = []Mood{
	MoodNostalgic, MoodJoyful, MoodReflective, MoodFunny, MoodTender,
	MoodProud, MoodBittersweet, MoodHopeful, MoodPeaceful, MoodCelebratory,
}

// ParseCategory maps s onto a known category, ignoring case and surrounding
// whitespace. ok is false for unknown values.
func ParseCategory(s string) (Category, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// ParseMood maps s onto a known mood. ok is false for unknown values.
func ParseMood(s string) (Mood, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, m := range Moods {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// milestoneLabels maps known milestone values to display labels.
var milestoneLabels = map[string]string{
	"first_day_of_school": "First day of school",
	"turning_13":          "Turning 13",
	"turning_16":          "Turning 16",
	"turning_18":          "Turning 18",
	"turning_21":          "Turning 21",
	"graduation":          "Graduation",
	"wedding_day":         "Wedding day",
	"first_child":         "When they have their first child",
	"feeling_sad":         "Open when feeling sad",
	"feeling_lost":        "Open when feeling lost",
	"needs_courage":       "Open when they need courage",
	"first_job":           "First job",
	"custom":              "Custom milestone",
}

// MilestoneLabel returns the display label for a milestone value.
// Unknown values are custom milestones and are returned unchanged.
func MilestoneLabel(m string) string {
	if label, ok := milestoneLabels[m]; ok {
		return label
	}
	return m
}
