package content

// SampleSpeakers is the launch roster used to seed an empty store.
var SampleSpeakers = []SpeakerInput{
	{Name: "Dr. Tapti Devi", NameNp: "डा. तपती देवी", Domain: "Maithili Literature", Country: "Nepal", Category: string(CategoryWritersThinkers),
		Bio: "Renowned Maithili author and literary scholar with over 30 years of experience in promoting regional literature."},
	{Name: "Rajneh Saraogi", NameNp: "रजनेह सारोगी", Domain: "Contemporary Fiction", Country: "India", Category: string(CategoryWritersThinkers),
		Bio: "Award-winning novelist known for works exploring identity and cultural heritage in the Madhesh region."},
	{Name: "Dr. Shila Mishra", NameNp: "डा. शिला मिश्रा", Domain: "Linguistic Research", Country: "Nepal", Category: string(CategoryWritersThinkers),
		Bio: "Leading researcher in regional languages and cultural documentation."},
	{Name: "Ravi Kumar Jha", NameNp: "रवि कुमार झा", Domain: "Bhojpuri Poetry", Country: "India", Category: string(CategoryPoets),
		Bio: "Celebrated Bhojpuri poet whose work bridges traditional and modern poetic forms."},
	{Name: "Sunita Thakur", NameNp: "सुनीता ठाकुर", Domain: "Folk Music", Country: "Nepal", Category: string(CategoryPerformers),
		Bio: "Master folk musician preserving and performing traditional Madheshi musical heritage."},
	{Name: "Anita Devi", NameNp: "अनीता देवी", Domain: "Classical Dance", Country: "Nepal", Category: string(CategoryPerformers),
		Bio: "Renowned classical dancer specializing in traditional Madheshi dance forms."},
	{Name: "Mohd. Jameel", NameNp: "मोहम्मद जमील", Domain: "Urdu Ghazal", Country: "India", Category: string(CategoryPoets),
		Bio: "Acclaimed Urdu ghazal artist with numerous national awards."},
	{Name: "Prof. Ramesh Bikal", NameNp: "प्रा. रमेश बिकल", Domain: "Nepali Literature", Country: "Nepal", Category: string(CategoryWritersThinkers),
		Bio: "Senior professor and writer contributing significantly to Nepali literary discourse."},
	{Name: "Sarah Thompson", Domain: "Cultural Anthropology", Country: "USA", Category: string(CategoryInternational),
		Bio: "International researcher specializing in South Asian cultural studies."},
	{Name: "Maya Rana", NameNp: "माया राना", Domain: "Tharu Arts", Country: "Nepal", Category: string(CategoryPerformers),
		Bio: "Traditional Tharu artist promoting indigenous art forms and cultural preservation."},
	{Name: "Kumar Singh", NameNp: "कुमार सिंह", Domain: "Contemporary Poetry", Country: "Nepal", Category: string(CategoryPoets),
		Bio: "Young poet exploring modern themes through traditional poetic structures."},
	{Name: "Prof. Amrita Sharma", NameNp: "प्रा. अमृता शर्मा", Domain: "Literary Criticism", Country: "India", Category: string(CategoryInternational),
		Bio: "Distinguished literary critic and academic from India."},
}

// SamplePartners mirrors the partner wall shown before the admin area existed.
var SamplePartners = []PartnerInput{
	{Name: "Uttarsh Nepal", Category: string(PartnerOrganizedBy)},
	{Name: "MLF Organizing Committee", Category: string(PartnerOrganizedBy)},
	{Name: "Ministry of Culture", Category: string(PartnerSupportedBy)},
	{Name: "Madhesh Provincial Government", Category: string(PartnerSupportedBy)},
	{Name: "Nepal Academy", Category: string(PartnerSupportedBy)},
	{Name: "India-Nepal Cultural Forum", Category: string(PartnerCultural)},
	{Name: "Maithili Sahitya Parishad", Category: string(PartnerCultural)},
	{Name: "Digital Nepal", Category: string(PartnerTech)},
	{Name: "Tech for Culture", Category: string(PartnerTech)},
	{Name: "Local NGOs", Category: string(PartnerCommunityPartners)},
	{Name: "Youth Organizations", Category: string(PartnerCommunityPartners)},
	{Name: "Literary Societies", Category: string(PartnerCommunityPartners)},
	{Name: "Cultural Groups", Category: string(PartnerCommunityPartners)},
}

// SampleSpeakerCards returns the sample roster in display shape with stable ids.
func SampleSpeakerCards() []SpeakerCard {
	out := make([]SpeakerCard, len(SampleSpeakers))
	for i, in := range SampleSpeakers {
		out[i] = SpeakerCard{
			ID:       sampleID("spk", i),
			Name:     in.Name,
			NameNp:   in.NameNp,
			Domain:   in.Domain,
			Country:  in.Country,
			Category: SpeakerCategory(in.Category),
			Bio:      in.Bio,
		}
	}
	return out
}

func sampleID(prefix string, i int) string {
	const digits = "0123456789"
	return prefix + "-" + string(digits[i/10]) + string(digits[i%10])
}
