package viewer

// Strings is one language's UI text.
type Strings struct {
	PageTitle       string
	ReportsCount    string
	NoReports       string
	BackToList      string
	File            string
	NotFound        string
	BadRequest      string
	BackToHome      string
	SourceInfo      string
	URL             string
	FetchedAt       string
	SourceType      string
	ExtractedData   string
	VotingOptions   string
	CurrentResults  string
	NoResults       string
	Metadata        string
	Analysis        string
	Summary         string
	KeyChanges      string
	Risks           string
	Benefits        string
	Unknowns        string
	EvidenceQuotes  string
	Recommendation  string
	SuggestedOption string
	Confidence      string
	Reasoning       string
	Conflicts       string
	Limitations     string
	VoteResults     string
	VoteStats       string
	Scores          string
	Option          string
	Votes           string
	Percent         string
	Type            string
	Voters          string
	Modified        string
	Size            string
	ReportTitle     string
	Verification    string
	Verified        string
	Events          string
	Yes             string
	No              string
	Validators      string
	Model           string
	MerkleRoot      string
	RequestID       string
	Auction         string
	Status          string
	BidsPlaced      string
	BidsRevealed    string
	AuctionAddress  string
	Bidder          string
	Boundary        string
	Deterministic   string
	Interpretive    string
	Notes           string
	Refusal         string
	RefusalPhrase   string
	JobFailed       string
}

var i18n = map[string]*Strings{
	"en": {
		PageTitle:       "DAO Governance Reports",
		ReportsCount:    "Total reports",
		NoReports:       "No reports available",
		BackToList:      "Back to list",
		File:            "File",
		NotFound:        "Page not found",
		BadRequest:      "Invalid report name",
		BackToHome:      "Back to home",
		SourceInfo:      "Source Information",
		URL:             "URL",
		FetchedAt:       "Fetched at",
		SourceType:      "Source type",
		ExtractedData:   "Extracted Data",
		VotingOptions:   "Voting Options",
		CurrentResults:  "Current Results",
		NoResults:       "No vote result data",
		Metadata:        "Metadata",
		Analysis:        "Analysis",
		Summary:         "Summary",
		KeyChanges:      "Key Changes",
		Risks:           "Risks",
		Benefits:        "Benefits",
		Unknowns:        "Unknown Factors",
		EvidenceQuotes:  "Evidence Quotes",
		Recommendation:  "Recommendation",
		SuggestedOption: "Suggested option",
		Confidence:      "Confidence level",
		Reasoning:       "Reasoning",
		Conflicts:       "Conflicts with user principles",
		Limitations:     "Limitations and Warnings",
		VoteResults:     "Vote Results",
		VoteStats:       "Vote Statistics",
		Scores:          "Scores",
		Option:          "Option",
		Votes:           "Votes",
		Percent:         "Percent",
		Type:            "Type",
		Voters:          "Voters",
		Modified:        "Modified",
		Size:            "Size",
		ReportTitle:     "Report",
		Verification:    "Verification",
		Verified:        "Verified",
		Events:          "Verification events",
		Yes:             "Yes",
		No:              "No",
		Validators:      "Validators",
		Model:           "Model",
		MerkleRoot:      "Merkle root",
		RequestID:       "Request ID",
		Auction:         "Auction",
		Status:          "Status",
		BidsPlaced:      "Bids placed",
		BidsRevealed:    "Bids revealed",
		AuctionAddress:  "Auction address",
		Bidder:          "Bidder",
		Boundary:        "Verification Boundary",
		Deterministic:   "Traceable to extracted data",
		Interpretive:    "Model interpretation",
		Notes:           "Notes",
		Refusal:         "The model declined to analyze this proposal",
		RefusalPhrase:   "Matched phrase",
		JobFailed:       "Analysis failed",
	},
	"ru": {
		PageTitle:       "Отчёты DAO Governance",
		ReportsCount:    "Всего отчётов",
		NoReports:       "Нет доступных отчётов",
		BackToList:      "Назад к списку",
		File:            "Файл",
		NotFound:        "Страница не найдена",
		BadRequest:      "Недопустимое имя отчёта",
		BackToHome:      "Вернуться на главную",
		SourceInfo:      "Информация об источнике",
		URL:             "URL",
		FetchedAt:       "Получено",
		SourceType:      "Тип источника",
		ExtractedData:   "Извлечённые данные",
		VotingOptions:   "Варианты голосования",
		CurrentResults:  "Текущие результаты",
		NoResults:       "Нет данных о результатах голосования",
		Metadata:        "Метаданные",
		Analysis:        "Анализ",
		Summary:         "Резюме",
		KeyChanges:      "Ключевые изменения",
		Risks:           "Риски",
		Benefits:        "Преимущества",
		Unknowns:        "Неизвестные факторы",
		EvidenceQuotes:  "Цитаты из предложения",
		Recommendation:  "Рекомендация",
		SuggestedOption: "Рекомендуемый вариант",
		Confidence:      "Уровень уверенности",
		Reasoning:       "Обоснование",
		Conflicts:       "Конфликты с принципами пользователя",
		Limitations:     "Ограничения и предупреждения",
		VoteResults:     "Результаты голосования",
		VoteStats:       "Статистика голосования",
		Scores:          "Очки",
		Option:          "Вариант",
		Votes:           "Голосов",
		Percent:         "Процент",
		Type:            "Тип",
		Voters:          "Голосующих",
		Modified:        "Изменён",
		Size:            "Размер",
		ReportTitle:     "Отчёт",
		Verification:    "Верификация",
		Verified:        "Верифицировано",
		Events:          "События верификации",
		Yes:             "Да",
		No:              "Нет",
		Validators:      "Валидаторы",
		Model:           "Модель",
		MerkleRoot:      "Корень Меркла",
		RequestID:       "ID запроса",
		Auction:         "Аукцион",
		Status:          "Статус",
		BidsPlaced:      "Ставок размещено",
		BidsRevealed:    "Ставок раскрыто",
		AuctionAddress:  "Адрес аукциона",
		Bidder:          "Участник",
		Boundary:        "Граница верификации",
		Deterministic:   "Подтверждается извлечёнными данными",
		Interpretive:    "Интерпретация модели",
		Notes:           "Заметки",
		Refusal:         "Модель отказалась анализировать предложение",
		RefusalPhrase:   "Найденная фраза",
		JobFailed:       "Анализ завершился ошибкой",
	},
}

// Lang normalizes a ?lang= value; anything but "ru" is English.
func Lang(q string) string {
	if q == "ru" {
		return "ru"
	}
	return "en"
}

// T returns the strings for lang.
func T(lang string) *Strings {
	return i18n[Lang(lang)]
}
