package content

import (
	"bytes"
	_ "embed"
	"html/template"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed about.md
var aboutMarkdown []byte

// Festival is the fixed event metadata shown in hero, footer and dashboard.
type Festival struct {
	Name     string
	Edition  string
	ThemeNp  string
	ThemeEn  string
	Dates    string
	Location string
	Country  string
	Email    string
	Phone    string
}

// DefaultFestival describes the 2026 edition.
var DefaultFestival = Festival{
	Name:     "Madhesh Literature Festival",
	Edition:  "MLF 2026",
	ThemeNp:  "माटीको सुगन्ध, जीवनको रंग",
	ThemeEn:  "Fragrance of the Soil, Colors of Life",
	Dates:    "January 29–31, 2026",
	Location: "Birgunj, Madhesh",
	Country:  "Nepal",
	Email:    "contact@madheshfest.org",
	Phone:    "+977-XXX-XXXXX",
}

// Session is one slot in the program schedule.
type Session struct {
	Time     string
	Title    string
	TitleNp  string
	Speakers []string
	Language string
	Venue    string
	Theme    string
}

// Day groups the sessions of one festival day.
type Day struct {
	Number   int
	Date     string
	Sessions []Session
}

// Schedule is the three-day program.
var Schedule = []Day{
	{Number: 1, Date: "Jan 29", Sessions: []Session{
		{"9:00 AM - 10:30 AM", "Opening Ceremony & Inaugural Session", "उद्घाटन समारोह", []string{"Chief Guest", "Festival Director", "Cultural Dignitaries"}, "Nepali", "Main Auditorium", "Culture"},
		{"11:00 AM - 12:30 PM", "Madheshi Literature: Past, Present, Future", "मधेशी साहित्य: भूत, वर्तमान, भविष्य", []string{"Dr. Tapti Devi", "Rajneh Saraogi", "Dr. Shila Mishra"}, "Maithili", "Literary Hall", "Literature"},
		{"2:00 PM - 3:30 PM", "AI & Technology in Preserving Regional Languages", "क्षेत्रीय भाषा संरक्षणमा AI", []string{"Tech Experts", "Language Scholars"}, "English", "Innovation Hub", "AI & Technology"},
		{"4:00 PM - 5:30 PM", "Youth Panel: Future of Madheshi Culture", "युवा प्यानल: मधेशी संस्कृतिको भविष्य", []string{"Youth Leaders", "Student Representatives"}, "Nepali", "Youth Zone", "Youth"},
		{"7:00 PM - 9:00 PM", "Cultural Performance Night", "सांस्कृतिक प्रस्तुति रात", []string{"Folk Artists", "Dance Troupes", "Musicians"}, "Multiple", "Open Air Theatre", "Culture"},
	}},
	{Number: 2, Date: "Jan 30", Sessions: []Session{
		{"9:00 AM - 10:30 AM", "Politics and Identity in Madhesh", "मधेशमा राजनीति र पहिचान", []string{"Political Analysts", "Social Scientists"}, "Nepali", "Main Auditorium", "Politics"},
		{"11:00 AM - 12:30 PM", "Bhojpuri Poetry Session", "भोजपुरी कविता सत्र", []string{"Renowned Bhojpuri Poets"}, "Bhojpuri", "Poetry Corner", "Literature"},
		{"2:00 PM - 3:30 PM", "Cross-Border Cultural Exchange", "सीमापार सांस्कृतिक आदानप्रदान", []string{"India-Nepal Cultural Representatives"}, "Hindi", "Cultural Hall", "Culture"},
		{"4:00 PM - 5:30 PM", "Book Launch & Author Meets", "पुस्तक विमोचन र लेखक भेट", []string{"New Authors", "Publishers"}, "Multiple", "Literary Hall", "Literature"},
		{"7:00 PM - 9:00 PM", "Poetry, Ghazal & Storytelling Evening", "कविता, गजल र कथा सन्ध्या", []string{"Poets", "Ghazal Artists", "Storytellers"}, "Urdu", "Open Air Theatre", "Literature"},
	}},
	{Number: 3, Date: "Jan 31", Sessions: []Session{
		{"9:00 AM - 10:30 AM", "Women in Madheshi Literature", "मधेशी साहित्यमा महिला", []string{"Women Writers", "Feminist Scholars"}, "Nepali", "Main Auditorium", "Literature"},
		{"11:00 AM - 12:30 PM", "Digital Innovation for Regional Languages", "क्षेत्रीय भाषाका लागि डिजिटल नवाचार", []string{"Tech Developers", "Language Experts"}, "English", "Innovation Hub", "AI & Technology"},
		{"2:00 PM - 3:30 PM", "Youth Writing Competition Results", "युवा लेखन प्रतियोगिता परिणाम", []string{"Winners", "Judges"}, "Multiple", "Youth Zone", "Youth"},
		{"4:00 PM - 5:30 PM", "Closing Ceremony & Future Vision", "समापन समारोह", []string{"Festival Organizers", "Special Guests"}, "Nepali", "Main Auditorium", "Culture"},
		{"7:00 PM - 10:00 PM", "Grand Musical Night Finale", "भव्य संगीत रात फिनाले", []string{"Renowned Musicians", "Fusion Bands"}, "Multiple", "Open Air Theatre", "Culture"},
	}},
}

// ScheduleThemes are the theme filter chips of the schedule section.
var ScheduleThemes = []string{"All", "Literature", "AI & Technology", "Culture", "Youth", "Politics"}

// ScheduleDay returns the requested day (1-based), defaulting to day one.
func ScheduleDay(n int) Day {
	for _, d := range Schedule {
		if d.Number == n {
			return d
		}
	}
	return Schedule[0]
}

// FilterSessions keeps sessions of the given theme; "All" keeps everything.
func FilterSessions(sessions []Session, theme string) []Session {
	if theme == "" || theme == AllCategories {
		return sessions
	}
	out := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Theme == theme {
			out = append(out, s)
		}
	}
	return out
}

// Feature is a titled card used by the highlights, pillars and evenings sections.
type Feature struct {
	Title       string
	TitleNp     string
	Description string
}

// Highlights are the "festival at a glance" cards.
var Highlights = []Feature{
	{"22 Districts", "२२ जिल्ला", "Celebrating Madhesh across all districts"},
	{"Multiple Languages", "बहुभाषिक", "Bhojpuri, Maithili, Tharu, Awadhi, Urdu, Hindi, Nepali"},
	{"Cross-Border Unity", "सीमापार एकता", "Nepal–India cultural collaboration"},
	{"Folk Traditions", "लोक परम्परा", "Preserving and celebrating heritage"},
}

// Pillars are the program pillars.
var Pillars = []Feature{
	{"Literary Sessions", "साहित्यिक सत्र", "Panel discussions, book launches, author meets, and storytelling sessions featuring renowned writers and scholars"},
	{"Performing Arts", "प्रदर्शन कला", "Traditional dance, theatre performances, folk music, and contemporary cultural expressions"},
	{"Poetry & Open Mic", "कविता र खुला माइक", "Poetry recitals, ghazal evenings, and open mic sessions in multiple languages celebrating spoken word"},
	{"Arts, Crafts & Culinary", "कला, शिल्प र खाना", "Traditional crafts exhibitions, food stalls showcasing Madheshi cuisine, and artisan demonstrations"},
	{"Youth Engagement", "युवा सहभागिता", "Competitions for schools, volunteer programs, youth debates, and interactive workshops"},
	{"Heritage & Tourism", "धरोहर र पर्यटन", "Cultural heritage tours, historical site visits, and showcases of Madhesh's landmarks"},
}

// Evenings are the cultural evening programs.
var Evenings = []Feature{
	{"Cultural Performance Night", "सांस्कृतिक प्रस्तुति रात", "Traditional dance, folk music, and theatrical performances showcasing Madheshi heritage"},
	{"Poetry, Ghazal & Storytelling", "कविता, गजल र कथा", "An evening of soul-stirring poetry, ghazal performances, and traditional storytelling"},
	{"Grand Musical Night", "भव्य संगीत रात", "A spectacular finale featuring renowned musicians and contemporary fusion performances"},
}

var (
	aboutOnce sync.Once
	aboutHTML template.HTML
	aboutErr  error
)

// AboutHTML renders the embedded about copy from markdown.
func AboutHTML() (template.HTML, error) {
	aboutOnce.Do(func() {
		aboutHTML, aboutErr = RenderMarkdown(aboutMarkdown)
	})
	return aboutHTML, aboutErr
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Typographer))

// RenderMarkdown converts trusted markdown to HTML. Raw HTML in the source is
// dropped by goldmark's default renderer.
func RenderMarkdown(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
