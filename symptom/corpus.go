package symptom

// TrainingExample пара "описание симптомов -> метка состояния"
type TrainingExample struct {
	Symptoms  string
	Condition string
}

// KeywordEntry строка таблицы ключевых фраз резервного режима
type KeywordEntry struct {
	Condition string
	Keywords  []string
}

// trainingCorpus встроенный обучающий набор (20 строк, 19 меток; diabetes встречается дважды)
var trainingCorpus = []TrainingExample{
	{"fever headache fatigue", "flu"},
	{"cough chest pain shortness of breath", "pneumonia"},
	{"nausea vomiting diarrhea", "gastroenteritis"},
	{"joint pain swelling stiffness", "arthritis"},
	{"rash itching redness", "dermatitis"},
	{"dizziness confusion memory loss", "alzheimer"},
	{"chest pain shortness of breath sweating", "heart_attack"},
	{"abdominal pain bloating nausea", "ibs"},
	{"back pain stiffness limited movement", "back_problems"},
	{"sore throat fever swollen glands", "strep_throat"},
	{"high blood pressure chest pain", "hypertension"},
	{"skin rash joint pain fatigue", "lupus"},
	{"headache blurred vision nausea", "migraine"},
	{"difficulty breathing wheezing cough", "asthma"},
	{"stomach pain nausea vomiting", "food_poisoning"},
	{"muscle pain weakness fatigue", "fibromyalgia"},
	{"anxiety depression mood changes", "depression"},
	{"sleep problems fatigue irritability", "insomnia"},
	{"weight loss fatigue weakness", "diabetes"},
	{"frequent urination thirst fatigue", "diabetes"},
}

// keywordTable таблица резервного режима. Порядок строк задает порядок
// при равных оценках.
var keywordTable = []KeywordEntry{
	{"flu", []string{"fever", "headache", "fatigue", "body aches"}},
	{"pneumonia", []string{"cough", "chest pain", "shortness of breath", "fever"}},
	{"gastroenteritis", []string{"nausea", "vomiting", "diarrhea", "stomach pain"}},
	{"arthritis", []string{"joint pain", "swelling", "stiffness"}},
	{"dermatitis", []string{"rash", "itching", "redness"}},
	{"alzheimer", []string{"dizziness", "confusion", "memory loss"}},
	{"heart_attack", []string{"chest pain", "shortness of breath", "sweating"}},
	{"ibs", []string{"abdominal pain", "bloating", "nausea"}},
	{"back_problems", []string{"back pain", "stiffness", "limited movement"}},
	{"strep_throat", []string{"sore throat", "fever", "swollen glands"}},
	{"hypertension", []string{"high blood pressure", "chest pain"}},
	{"lupus", []string{"skin rash", "joint pain", "fatigue"}},
	{"migraine", []string{"headache", "blurred vision", "nausea"}},
	{"asthma", []string{"difficulty breathing", "wheezing", "cough"}},
	{"food_poisoning", []string{"stomach pain", "nausea", "vomiting"}},
	{"fibromyalgia", []string{"muscle pain", "weakness", "fatigue"}},
	{"depression", []string{"anxiety", "depression", "mood changes"}},
	{"insomnia", []string{"sleep problems", "fatigue", "irritability"}},
	{"diabetes", []string{"weight loss", "fatigue", "weakness", "frequent urination", "thirst"}},
}

// TrainingCorpus возвращает копию встроенного обучающего набора
func TrainingCorpus() []TrainingExample {
	out := make([]TrainingExample, len(trainingCorpus))
	copy(out, trainingCorpus)
	return out
}

// KeywordTable возвращает копию таблицы ключевых фраз
func KeywordTable() []KeywordEntry {
	out := make([]KeywordEntry, len(keywordTable))
	for i, entry := range keywordTable {
		out[i] = KeywordEntry{
			Condition: entry.Condition,
			Keywords:  append([]string(nil), entry.Keywords...),
		}
	}
	return out
}
