package grammar

import "regexp"

var callEN = []Pattern{
	{
		Name:   "give-a-call",
		Intent: IntentCall,
		Regex:  regexp.MustCompile(`(?i)^(?:please\s+)?give\s+(?P<who>.+?)\s+a\s+(?:call|ring)(?:\s+please)?$`),
	},
	{
		Name:   "can-you-call",
		Intent: IntentCall,
		Regex:  regexp.MustCompile(`(?i)^(?:can|could|would)\s+you\s+(?:please\s+)?(?:call|phone|ring|dial)\s+(?:up\s+)?(?P<who>.+?)(?:\s+(?:please|for\s+me))?$`),
	},
	{
		Name:   "want-to-call",
		Intent: IntentCall,
		Regex:  regexp.MustCompile(`(?i)^i\s+(?:want|would\s+like|'d\s+like)\s+to\s+(?:call|phone|ring|talk\s+to|speak\s+(?:to|with))\s+(?P<who>.+)$`),
	},
	{
		Name:   "call",
		Intent: IntentCall,
		Regex:  regexp.MustCompile(`(?i)^(?:please\s+)?(?:call|phone|ring|dial|telephone)\s+(?:up\s+)?(?P<who>.+?)(?:\s+(?:please|now))?$`),
	},
}

var callDE = []Pattern{
	{
		Name:   "kannst-du-anrufen",
		Intent: IntentCall,
		Regex:  regexp.MustCompile(`(?i)^(?:kannst|könntest)\s+du\s+(?:bitte\s+)?(?P<who>.+?)\s+anrufen$`),
	},
	{
		Name:   "ruf-an",
		Intent: IntentCall,
		Regex:  regexp.MustCompile(`(?i)^(?:bitte\s+)?rufe?\s+(?:bitte\s+)?(?P<who>.+?)\s+an(?:\s+bitte)?$`),
	},
	{
		Name:   "verbinde-mit",
		Intent: IntentCall,
		Regex:  regexp.MustCompile(`(?i)^(?:bitte\s+)?(?:telefoniere|verbinde\s+mich)\s+mit\s+(?P<who>.+?)(?:\s+bitte)?$`),
	},
	{
		Name:   "anrufen",
		Intent: IntentCall,
		Regex:  regexp.MustCompile(`(?i)^(?P<who>.+?)\s+anrufen$`),
	},
}

var yesNoEN = []Pattern{
	{
		Name:   "yes",
		Intent: IntentYes,
		Regex:  regexp.MustCompile(`(?i)^(?:yes|yeah|yep|yup|sure|ok|okay|of\s+course|do\s+it|go\s+ahead|please\s+do|call(?:\s+(?:it|him|her|them))?)(?:\s+(?:please|thanks|thank\s+you))?$`),
	},
	{
		Name:   "no",
		Intent: IntentNo,
		Regex:  regexp.MustCompile(`(?i)^(?:no|nope|nah|cancel|stop|don'?t(?:\s+call)?|do\s+not(?:\s+call)?|never\s*mind|not\s+now)(?:\s+(?:thanks|thank\s+you))?$`),
	},
}

var yesNoDE = []Pattern{
	{
		Name:   "ja",
		Intent: IntentYes,
		Regex:  regexp.MustCompile(`(?i)^(?:ja|jawohl|jep|klar|sicher|genau|ok|okay|mach(?:\s+das)?|ruf\s+an)(?:\s+(?:bitte|danke))?$`),
	},
	{
		Name:   "nein",
		Intent: IntentNo,
		Regex:  regexp.MustCompile(`(?i)^(?:nein|nee|ne|nö|abbrechen|stopp?|lass\s+(?:es|das)|nicht\s+anrufen)(?:\s+danke)?$`),
	},
}
