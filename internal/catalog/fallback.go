package catalog

import "github.com/wolfman30/dental-booking-dashboard/internal/locale"

func names(en, lv, ru string) locale.Name {
	return locale.Localized(map[locale.Language]string{locale.EN: en, locale.LV: lv, locale.RU: ru})
}

func fallbackService(id string, name, desc locale.Name, cents, minutes int, category string) Service {
	return Service{
		ID:              id,
		Name:            name,
		Description:     desc,
		Price:           PriceFromCents(cents),
		PriceCents:      cents,
		DurationMinutes: minutes,
		Category:        category,
	}
}

// FallbackServices returns the built-in service list served when the database is unavailable.
func FallbackServices() []Service {
	return []Service{
		fallbackService("s1",
			names("Integrated Teeth and Oral Cavity Test", "Integrēta zobu un mutes dobuma pārbaude", "Комплексное обследование зубов и полости рта"),
			names("Comprehensive diagnostic check-up and plan.", "Visaptveroša diagnostika un plāns.", "Комплексная диагностика и план."),
			5000, 45, "diagnostics"),
		fallbackService("s2",
			names("Check-Ups and Dental Hygiene", "Pārbaudes un zobu higiēna", "Осмотры и гигиена зубов"),
			names("Professional cleaning and routine exam.", "Profesionāla tīrīšana un kārtējā pārbaude.", "Профессиональная чистка и осмотр."),
			6500, 60, "hygiene"),
		fallbackService("s3",
			names("Children’s Dentistry", "Bērnu zobārstniecība", "Детская стоматология"),
			names("Gentle care for young patients.", "Maiga aprūpe mazajiem pacientiem.", "Бережный уход за маленькими пациентами."),
			4500, 30, "pediatric"),
		fallbackService("s4",
			names("Dental Treatment", "Zobu ārstēšana", "Лечение зубов"),
			names("Caries treatment and fillings.", "Kariesa ārstēšana un plombēšana.", "Лечение кариеса и пломбирование."),
			6000, 60, "treatment"),
		fallbackService("s5",
			names("Sedative treatment", "Ārstēšana sedācijā", "Лечение под седацией"),
			names("Anxiety-free treatment options.", "Ārstēšana bez stresa un raizēm.", "Лечение без стресса и тревоги."),
			10000, 60, "treatment"),
		fallbackService("s6",
			names("Teeth Whitening", "Zobu balināšana", "Отбеливание зубов"),
			names("Professional whitening for a brighter smile.", "Profesionāla balināšana mirdzošam smaidam.", "Профессиональное отбеливание."),
			25000, 90, "cosmetic"),
		fallbackService("s7",
			names("Surgery", "Ķirurģija", "Хирургия"),
			names("Extractions and surgical procedures.", "Zobu raušana un ķirurģija.", "Удаление и хирургические процедуры."),
			12000, 60, "surgery"),
		fallbackService("s8",
			names("Prosthetics", "Protezēšana", "Протезирование"),
			names("Crowns, bridges, and dentures.", "Kroņi, tilti un protēzes.", "Коронки, мосты и протезы."),
			40000, 60, "prosthetics"),
		fallbackService("s9",
			names("Implantology", "Implantoloģija", "Имплантология"),
			names("Restoring missing teeth with implants.", "Zobu atjaunošana ar implantiem.", "Восстановление зубов имплантами."),
			75000, 90, "surgery"),
		fallbackService("s10",
			names("Restoration of Jaw Bone Tissues", "Žokļa kaula audu atjaunošana", "Восстановление костной ткани челюсти"),
			names("Bone augmentation and reconstruction.", "Kaula audzēšana un rekonstrukcija.", "Наращивание и реконструкция кости."),
			50000, 90, "surgery"),
	}
}

// FallbackSpecialists returns the built-in specialist list served when the database is unavailable.
func FallbackSpecialists() []Specialist {
	return []Specialist{
		{
			ID:          "d1",
			Name:        "Dr. Anna Bērziņa",
			Role:        names("Lead Surgeon", "Galvenā ķirurģe", "Главный хирург"),
			Specialties: []string{"s7", "s9", "s10", "s8"},
		},
		{
			ID:          "d2",
			Name:        "Dr. Jānis Liepiņš",
			Role:        names("General Dentist", "Vispārējais zobārsts", "Стоматолог общей практики"),
			Specialties: []string{"s1", "s2", "s4", "s6", "s8"},
		},
		{
			ID:          "d3",
			Name:        "Dr. Elena Petrova",
			Role:        names("Pediatric Dentist", "Bērnu zobārste", "Детский стоматолог"),
			Specialties: []string{"s3", "s4", "s5"},
		},
	}
}
